package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	emailnatorBase = "https://www.emailnator.com"
	signinPath     = "/api/auth/signin-email"

	mailPollInterval = 3 * time.Second
	mailPollAttempts = 20
)

var signinLinkRe = regexp.MustCompile(`https://www\.perplexity\.ai/api/auth/callback/email[^\s"'<>]+`)

// CreateAccount provisions a fresh provider session: it generates a
// throwaway inbox with the mail provider's cookies, requests a signin link
// for it, waits for the mail, follows the link, and returns the cookies the
// provider set. The caller decides what to do with the new session; the
// gateway itself keeps serving with its startup credentials.
func (c *Client) CreateAccount(ctx context.Context) (map[string]string, error) {
	if len(c.emailCookies) == 0 {
		return nil, &Error{StatusCode: http.StatusInternalServerError, Message: "EMAILNATOR_COOKIES is not configured"}
	}

	email, err := c.generateEmail(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.requestSigninLink(ctx, email); err != nil {
		return nil, err
	}

	link, err := c.waitForSigninLink(ctx, email)
	if err != nil {
		return nil, err
	}

	return c.followSigninLink(ctx, link)
}

func (c *Client) generateEmail(ctx context.Context) (string, error) {
	raw, err := c.emailnatorPost(ctx, "/generate-email", map[string]any{
		"email": []string{"plusGmail", "dotGmail"},
	})
	if err != nil {
		return "", err
	}
	email := gjson.GetBytes(raw, "email.0").Str
	if email == "" {
		return "", &Error{StatusCode: http.StatusBadGateway, Message: "mail provider returned no address"}
	}
	return email, nil
}

func (c *Client) requestSigninLink(ctx context.Context, email string) error {
	body, _ := json.Marshal(map[string]string{"email": email})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+signinPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{StatusCode: http.StatusBadGateway, Message: "signin request failed: " + err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return classify(resp.StatusCode, raw)
	}
	return nil
}

// waitForSigninLink polls the inbox until the provider's mail arrives.
func (c *Client) waitForSigninLink(ctx context.Context, email string) (string, error) {
	ticker := time.NewTicker(mailPollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < mailPollAttempts; attempt++ {
		raw, err := c.emailnatorPost(ctx, "/message-list", map[string]any{"email": email})
		if err != nil {
			return "", err
		}

		var messageID string
		gjson.GetBytes(raw, "messageData").ForEach(func(_, msg gjson.Result) bool {
			if strings.Contains(strings.ToLower(msg.Get("from").Str), "perplexity") {
				messageID = msg.Get("messageID").Str
				return false
			}
			return true
		})

		if messageID != "" {
			content, err := c.emailnatorPost(ctx, "/message-list", map[string]any{
				"email":     email,
				"messageID": messageID,
			})
			if err != nil {
				return "", err
			}
			if link := signinLinkRe.FindString(string(content)); link != "" {
				return strings.ReplaceAll(link, "&amp;", "&"), nil
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
	return "", &Error{StatusCode: http.StatusGatewayTimeout, Message: "signin mail did not arrive in time"}
}

// followSigninLink completes the magic-link flow with a dedicated cookie
// jar and returns the session cookies the provider issued.
func (c *Client) followSigninLink(ctx context.Context, link string) (map[string]string, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Jar: jar, Timeout: upstreamHTTPTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "signin callback failed: " + err.Error()}
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()

	base, err := url.Parse(c.base)
	if err != nil {
		return nil, err
	}
	cookies := map[string]string{}
	for _, cookie := range jar.Cookies(base) {
		cookies[cookie.Name] = cookie.Value
	}
	if len(cookies) == 0 {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "signin callback issued no session cookies"}
	}
	return cookies, nil
}

// emailnatorPost calls the mail provider with its cookie set, including the
// XSRF token it expects mirrored into a header.
func (c *Client) emailnatorPost(ctx context.Context, path string, payload map[string]any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, emailnatorBase+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	c.addCookies(req, c.emailCookies)
	if token := c.emailCookies["XSRF-TOKEN"]; token != "" {
		req.Header.Set("X-Xsrf-Token", strings.ReplaceAll(token, "%3D", "="))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "mail provider request failed: " + err.Error()}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "mail provider response unreadable: " + err.Error()}
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("mail provider returned HTTP %d", resp.StatusCode)}
	}
	return raw, nil
}
