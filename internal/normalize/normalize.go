package normalize

import (
	"encoding/json"
	"strings"

	"github.com/plexgate/plexgate/internal/codec"
	"github.com/plexgate/plexgate/internal/types"
)

// Request validates and defaults a raw JSON body into a CanonicalRequest.
// The gateway is deliberately permissive about mode and model values:
// unrecognized tags are forwarded and the provider rejects them, so no
// allow-list has to be kept in sync here.
func Request(body []byte) (*types.CanonicalRequest, *codec.Error) {
	var raw map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, codec.Validation("", "Request body must be valid JSON")
		}
	}

	query := types.StringFromAny(raw["query"])
	if query == "" {
		return nil, codec.Validation("query", "Field 'query' (string) is required")
	}

	files, ferr := ParseFiles(raw["files"])
	if ferr != nil {
		return nil, ferr
	}

	req := &types.CanonicalRequest{
		Query:     query,
		Mode:      types.DefaultMode,
		Model:     types.StringFromAny(raw["model"]),
		Sources:   []string{types.DefaultSource},
		Language:  types.DefaultLanguage,
		Incognito: types.BoolFromAny(raw["incognito"], false),
		Stream:    types.BoolFromAny(raw["stream"], false),
		FollowUp:  raw["follow_up"],
		Files:     files,
	}

	if mode := types.StringFromAny(raw["mode"]); mode != "" {
		req.Mode = mode
	}
	if sources := types.StringListFromAny(raw["sources"]); len(sources) > 0 {
		req.Sources = sources
	}
	if lang := types.StringFromAny(raw["language"]); lang != "" {
		req.Language = lang
	}

	return req, nil
}

// FromMultipart builds a CanonicalRequest from an already-parsed multipart
// form: scalar fields come from form values, files from the normalized
// file parts. Field semantics match the JSON route.
func FromMultipart(fields map[string]string, files []types.FileEntry) (*types.CanonicalRequest, *codec.Error) {
	query := strings.TrimSpace(fields["query"])
	if query == "" {
		return nil, codec.Validation("query", "Field 'query' (string) is required")
	}

	req := &types.CanonicalRequest{
		Query:     query,
		Mode:      types.DefaultMode,
		Model:     strings.TrimSpace(fields["model"]),
		Sources:   []string{types.DefaultSource},
		Language:  types.DefaultLanguage,
		Incognito: types.BoolFromAny(fields["incognito"], false),
		Stream:    types.BoolFromAny(fields["stream"], false),
		Files:     files,
	}

	if mode := strings.TrimSpace(fields["mode"]); mode != "" {
		req.Mode = mode
	}
	if sources := types.StringListFromAny(fields["sources"]); len(sources) > 0 {
		req.Sources = sources
	}
	if lang := strings.TrimSpace(fields["language"]); lang != "" {
		req.Language = lang
	}
	if fu := strings.TrimSpace(fields["follow_up"]); fu != "" {
		req.FollowUp = fu
	}

	return req, nil
}
