package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/plexgate/plexgate/internal/types"
	"github.com/plexgate/plexgate/internal/usage"
)

const (
	baseURL       = "https://www.perplexity.ai"
	searchPath    = "/rest/sse/perplexity_ask"
	userAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	payloadSource = "default"
)

// upstreamHTTPTimeout bounds one provider call including the SSE stream.
// Deep-research answers can take minutes, so this is generous; the
// per-request gateway budget is enforced separately via context.
const upstreamHTTPTimeout = 5 * time.Minute

// Searcher is the downstream provider capability. The gateway issues at
// most one Search per inbound request.
type Searcher interface {
	Search(ctx context.Context, req *types.CanonicalRequest) (*Outcome, error)
}

// AccountCreator exchanges mail-provider cookies for a fresh provider
// session.
type AccountCreator interface {
	CreateAccount(ctx context.Context) (map[string]string, error)
}

// Client talks to the provider's conversational-search endpoint using
// session cookies for identity.
type Client struct {
	cookies      map[string]string
	emailCookies map[string]string
	httpClient   *http.Client
	usage        *usage.Tracker
	verbose      bool

	// base is overridable for tests.
	base string
}

// NewClient creates a provider client bound to a cookie session.
func NewClient(cookies, emailCookies map[string]string, tracker *usage.Tracker, verbose bool) *Client {
	return &Client{
		cookies:      cookies,
		emailCookies: emailCookies,
		httpClient:   &http.Client{Timeout: upstreamHTTPTimeout},
		usage:        tracker,
		verbose:      verbose,
		base:         baseURL,
	}
}

// searchParams is the provider's wire shape for one ask call.
type searchParams struct {
	Version           string   `json:"version"`
	Source            string   `json:"source"`
	Language          string   `json:"language"`
	Timezone          string   `json:"timezone"`
	SearchFocus       string   `json:"search_focus"`
	FrontendUUID      string   `json:"frontend_uuid"`
	FrontendSessionID string   `json:"frontend_session_id"`
	Mode              string   `json:"mode"`
	ModelPreference   *string  `json:"model_preference,omitempty"`
	Sources           []string `json:"sources,omitempty"`
	IsIncognito       bool     `json:"is_incognito"`
	Attachments       []string `json:"attachments,omitempty"`
	QueryStr          string   `json:"query_str"`
}

// Search issues one provider call. Files are uploaded first and passed as
// attachment URLs. The streaming arm hands back a live fragment sequence;
// the non-streaming arm collapses it into the provider's final answer.
func (c *Client) Search(ctx context.Context, req *types.CanonicalRequest) (*Outcome, error) {
	attachments, err := c.uploadFiles(ctx, req.Files)
	if err != nil {
		return nil, err
	}

	params := searchParams{
		Version:           "2.18",
		Source:            payloadSource,
		Language:          req.Language,
		Timezone:          "UTC",
		SearchFocus:       "internet",
		FrontendUUID:      uuid.NewString(),
		FrontendSessionID: uuid.NewString(),
		Mode:              req.Mode,
		Sources:           req.Sources,
		IsIncognito:       req.Incognito,
		Attachments:       attachments,
		QueryStr:          req.Query,
	}
	if req.Model != "" {
		params.ModelPreference = types.StringPtr(req.Model)
	}

	body, err := json.Marshal(map[string]any{
		"params":    params,
		"query_str": req.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search payload: %w", err)
	}
	if req.FollowUp != nil {
		body, err = sjson.SetBytes(body, "params.follow_up", req.FollowUp)
		if err != nil {
			return nil, fmt.Errorf("failed to attach follow_up context: %w", err)
		}
	}

	if c.verbose {
		slog.Info("upstream.request",
			"mode", req.Mode,
			"model", req.Model,
			"sources", req.Sources,
			"language", req.Language,
			"incognito", req.Incognito,
			"stream", req.Stream,
			"attachments", len(attachments),
			"query_chars", len(req.Query),
		)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+searchPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("User-Agent", userAgent)
	c.addCookies(httpReq, c.cookies)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "provider request failed: " + err.Error()}
	}
	c.usage.RecordFromResponse(resp.Header)

	if c.verbose {
		slog.Info("upstream.response", "status", resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, classify(resp.StatusCode, errBody)
	}

	stream := NewStream(resp.Body)
	if req.Stream {
		return &Outcome{Fragments: stream}, nil
	}

	result, err := stream.Collect()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "provider stream failed: " + err.Error()}
	}
	if result == nil {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "provider returned an empty response"}
	}
	return &Outcome{Result: result}, nil
}

func (c *Client) addCookies(req *http.Request, cookies map[string]string) {
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}
