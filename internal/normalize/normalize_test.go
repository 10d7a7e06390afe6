package normalize

import (
	"reflect"
	"testing"

	"github.com/plexgate/plexgate/internal/codec"
)

func TestRequestAppliesDefaults(t *testing.T) {
	req, nerr := Request([]byte(`{"query":"ping"}`))
	if nerr != nil {
		t.Fatalf("unexpected error: %v", nerr)
	}
	if req.Query != "ping" {
		t.Fatalf("Query: got %q", req.Query)
	}
	if req.Mode != "auto" {
		t.Fatalf("Mode: got %q, want auto", req.Mode)
	}
	if !reflect.DeepEqual(req.Sources, []string{"web"}) {
		t.Fatalf("Sources: got %v, want [web]", req.Sources)
	}
	if req.Language != "en-US" {
		t.Fatalf("Language: got %q, want en-US", req.Language)
	}
	if req.Incognito || req.Stream {
		t.Fatalf("Incognito/Stream should default to false")
	}
	if len(req.Files) != 0 {
		t.Fatalf("Files should default to empty, got %d", len(req.Files))
	}
}

func TestRequestRejectsMissingQuery(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"absent", `{"mode":"pro"}`},
		{"empty", `{"query":""}`},
		{"blank", `{"query":"   "}`},
		{"non-string", `{"query":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, nerr := Request([]byte(tt.body))
			if nerr == nil {
				t.Fatal("expected validation error")
			}
			if nerr.Code != codec.CodeValidation {
				t.Fatalf("code: got %q", nerr.Code)
			}
			if nerr.Field != "query" {
				t.Fatalf("field: got %q, want query", nerr.Field)
			}
		})
	}
}

func TestRequestRejectsInvalidJSON(t *testing.T) {
	_, nerr := Request([]byte(`{not json`))
	if nerr == nil || nerr.Status != 400 {
		t.Fatalf("expected 400 validation error, got %v", nerr)
	}
}

func TestRequestCoercions(t *testing.T) {
	body := `{
		"query": "sonar models",
		"mode": "pro",
		"model": "sonar",
		"sources": "scholar",
		"language": "de-DE",
		"incognito": "true",
		"stream": "true",
		"follow_up": {"backend_uuid": "b-1"}
	}`
	req, nerr := Request([]byte(body))
	if nerr != nil {
		t.Fatalf("unexpected error: %v", nerr)
	}
	if req.Mode != "pro" || req.Model != "sonar" {
		t.Fatalf("mode/model: got %q/%q", req.Mode, req.Model)
	}
	if !reflect.DeepEqual(req.Sources, []string{"scholar"}) {
		t.Fatalf("scalar source not coerced: %v", req.Sources)
	}
	if !req.Incognito || !req.Stream {
		t.Fatal("string booleans not coerced")
	}
	if req.FollowUp == nil {
		t.Fatal("follow_up not passed through")
	}
}

func TestRequestForwardsUnrecognizedMode(t *testing.T) {
	req, nerr := Request([]byte(`{"query":"q","mode":"hyper-research"}`))
	if nerr != nil {
		t.Fatalf("unexpected error: %v", nerr)
	}
	if req.Mode != "hyper-research" {
		t.Fatalf("unrecognized mode should pass through, got %q", req.Mode)
	}
}

func TestFromMultipartMatchesJSONSemantics(t *testing.T) {
	req, nerr := FromMultipart(map[string]string{
		"query":     "upload test",
		"incognito": "true",
	}, nil)
	if nerr != nil {
		t.Fatalf("unexpected error: %v", nerr)
	}
	if req.Mode != "auto" || req.Language != "en-US" {
		t.Fatalf("defaults not applied: %q/%q", req.Mode, req.Language)
	}
	if !req.Incognito {
		t.Fatal("incognito string not coerced")
	}

	_, nerr = FromMultipart(map[string]string{"mode": "pro"}, nil)
	if nerr == nil || nerr.Field != "query" {
		t.Fatalf("expected query validation error, got %v", nerr)
	}
}
