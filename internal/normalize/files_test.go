package normalize

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"reflect"
	"strings"
	"testing"

	"github.com/plexgate/plexgate/internal/types"
)

func mustJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("bad test fixture: %v", err)
	}
	return v
}

func TestParseFilesShapeInvariance(t *testing.T) {
	mapShape := mustJSON(t, `{
		"a.txt": "alpha",
		"b.txt": {"content": "YmV0YQ==", "encoding": "base64"}
	}`)
	listShape := mustJSON(t, `[
		{"filename": "a.txt", "content": "alpha"},
		{"filename": "b.txt", "content": "YmV0YQ==", "encoding": "base64"}
	]`)

	fromMap, err := ParseFiles(mapShape)
	if err != nil {
		t.Fatalf("map shape: %v", err)
	}
	fromList, err := ParseFiles(listShape)
	if err != nil {
		t.Fatalf("list shape: %v", err)
	}

	want := []types.FileEntry{
		{Name: "a.txt", Content: []byte("alpha")},
		{Name: "b.txt", Content: []byte("beta")},
	}
	if !reflect.DeepEqual(fromMap, want) {
		t.Fatalf("map shape: got %v", fromMap)
	}
	if !reflect.DeepEqual(fromList, want) {
		t.Fatalf("list shape: got %v", fromList)
	}
}

func TestParseFilesBase64Flag(t *testing.T) {
	raw := mustJSON(t, `[{"filename": "f.bin", "content": "AQID", "base64": true}]`)
	files, err := ParseFiles(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(files[0].Content, []byte{1, 2, 3}) {
		t.Fatalf("content: got %v", files[0].Content)
	}
}

func TestParseFilesBadBase64NamesFile(t *testing.T) {
	raw := mustJSON(t, `{"broken.bin": {"content": "!!not-base64!!", "encoding": "base64"}}`)
	_, err := ParseFiles(raw)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Message, "broken.bin") {
		t.Fatalf("error should name the file: %q", err.Message)
	}
	if err.Field != "files" {
		t.Fatalf("field: got %q, want files", err.Field)
	}
}

func TestParseFilesNoPartialListOnFailure(t *testing.T) {
	raw := mustJSON(t, `[
		{"filename": "ok.txt", "content": "fine"},
		{"filename": "bad.bin", "content": "%%%", "encoding": "base64"}
	]`)
	files, err := ParseFiles(raw)
	if err == nil {
		t.Fatal("expected error")
	}
	if files != nil {
		t.Fatalf("no partial list may survive a decode failure, got %v", files)
	}
}

func TestParseFilesRejectsUnknownShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"scalar", "nope"},
		{"number", float64(1)},
		{"list of strings", mustJSON(t, `["a","b"]`)},
		{"list item missing filename", mustJSON(t, `[{"content":"x"}]`)},
		{"list item missing content", mustJSON(t, `[{"filename":"x"}]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFiles(tt.raw); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseFilesBase64RoundTrip(t *testing.T) {
	original := []byte{0x00, 0xff, 0x10, 0x80, 0x7f, 0x01}
	raw := map[string]any{
		"blob.bin": map[string]any{
			"content":  base64.StdEncoding.EncodeToString(original),
			"encoding": "base64",
		},
	}
	files, err := ParseFiles(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(files[0].Content, original) {
		t.Fatalf("round trip mismatch: got %v, want %v", files[0].Content, original)
	}
}

func TestFilesFromMultipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte{0x25, 0x50, 0x44, 0x46})
	part2, err := mw.CreateFormFile("file2", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	part2.Write([]byte("hello"))
	mw.Close()

	reader := multipart.NewReader(&buf, mw.Boundary())
	form, err := reader.ReadForm(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer form.RemoveAll()

	files, nerr := FilesFromMultipart(form)
	if nerr != nil {
		t.Fatalf("unexpected error: %v", nerr)
	}
	want := []types.FileEntry{
		{Name: "doc.pdf", Content: []byte{0x25, 0x50, 0x44, 0x46}},
		{Name: "notes.txt", Content: []byte("hello")},
	}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("got %v, want %v", files, want)
	}
}
