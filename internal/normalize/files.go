package normalize

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"sort"
	"strings"

	"github.com/plexgate/plexgate/internal/codec"
	"github.com/plexgate/plexgate/internal/types"
)

// maxFileBytes bounds the decoded size of a single multipart file part.
const maxFileBytes = 25 * 1024 * 1024

// ParseFiles reduces any accepted 'files' shape into an ordered FileEntry
// slice. Two shapes are recognized:
//
//   - a mapping from filename to string content, or to an object carrying
//     content plus an encoding tag or base64 flag;
//   - a list of objects each carrying filename, content and an optional
//     encoding tag or base64 flag.
//
// Map entries are emitted in sorted filename order so the two shapes
// produce identical sequences for the same logical files. A single bad
// entry aborts the whole request; no partial file list is forwarded.
func ParseFiles(raw any) ([]types.FileEntry, *codec.Error) {
	if raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)

		out := make([]types.FileEntry, 0, len(names))
		for _, name := range names {
			entry, err := parseFilePayload(name, v[name])
			if err != nil {
				return nil, err
			}
			out = append(out, entry)
		}
		return out, nil

	case []any:
		out := make([]types.FileEntry, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, codec.Validation("files", "Each item in 'files' must include 'filename' and 'content'")
			}
			name := types.StringFromAny(obj["filename"])
			content, hasContent := obj["content"]
			if name == "" || !hasContent {
				return nil, codec.Validation("files", "Each item in 'files' must include 'filename' and 'content'")
			}
			entry, err := decodeFileContent(name, content, encodingOf(obj))
			if err != nil {
				return nil, err
			}
			out = append(out, entry)
		}
		return out, nil
	}

	return nil, codec.Validation("files", "Field 'files' must be an object or a list of file objects")
}

// parseFilePayload handles one map-shape value: either bare string content
// or an object with explicit content/encoding fields.
func parseFilePayload(name string, payload any) (types.FileEntry, *codec.Error) {
	if obj, ok := payload.(map[string]any); ok {
		if content, hasContent := obj["content"]; hasContent {
			return decodeFileContent(name, content, encodingOf(obj))
		}
	}
	return decodeFileContent(name, payload, "")
}

// encodingOf resolves the encoding tag of a file object: an explicit
// 'encoding' field wins, otherwise a truthy 'base64' flag means base64.
func encodingOf(obj map[string]any) string {
	if enc := types.StringFromAny(obj["encoding"]); enc != "" {
		return enc
	}
	if types.BoolFromAny(obj["base64"], false) {
		return "base64"
	}
	return ""
}

func decodeFileContent(name string, content any, encoding string) (types.FileEntry, *codec.Error) {
	text, ok := content.(string)
	if !ok {
		return types.FileEntry{}, codec.Validation("files", fmt.Sprintf("Unsupported content type for file '%s'", name))
	}

	if strings.EqualFold(strings.TrimSpace(encoding), "base64") {
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return types.FileEntry{}, codec.Validation("files", fmt.Sprintf("Invalid base64 content for file '%s'", name))
		}
		return types.FileEntry{Name: name, Content: decoded}, nil
	}

	return types.FileEntry{Name: name, Content: []byte(text)}, nil
}

// FilesFromMultipart normalizes the file parts of a multipart form into the
// same canonical sequence as the JSON shapes. Parts arrive already decoded,
// so content is taken binary-safe regardless of the part's content type.
func FilesFromMultipart(form *multipart.Form) ([]types.FileEntry, *codec.Error) {
	if form == nil {
		return nil, nil
	}

	var out []types.FileEntry
	for _, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, codec.Validation("files", fmt.Sprintf("Unable to read file part '%s'", fh.Filename))
			}
			content, err := io.ReadAll(io.LimitReader(f, maxFileBytes+1))
			f.Close()
			if err != nil {
				return nil, codec.Validation("files", fmt.Sprintf("Unable to read file part '%s'", fh.Filename))
			}
			if len(content) > maxFileBytes {
				return nil, codec.Validation("files", fmt.Sprintf("File part '%s' exceeds the size limit", fh.Filename))
			}
			out = append(out, types.FileEntry{Name: fh.Filename, Content: content})
		}
	}

	// Form file maps carry no defined order; sort by name for determinism.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
