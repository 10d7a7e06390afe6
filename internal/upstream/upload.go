package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/plexgate/plexgate/internal/types"
)

const uploadURLPath = "/rest/uploads/create_upload_url"

// uploadFiles pushes each attachment to the provider's object store and
// returns the resulting URLs in the same order as the input entries.
// The first failure aborts the whole batch.
func (c *Client) uploadFiles(ctx context.Context, files []types.FileEntry) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	urls := make([]string, 0, len(files))
	for _, file := range files {
		url, err := c.uploadFile(ctx, file)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (c *Client) uploadFile(ctx context.Context, file types.FileEntry) (string, error) {
	body, err := json.Marshal(map[string]any{
		"filename":     file.Name,
		"content_type": "application/octet-stream",
		"source":       payloadSource,
		"file_size":    len(file.Content),
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+uploadURLPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	c.addCookies(httpReq, c.cookies)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &Error{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("upload URL request for '%s' failed: %v", file.Name, err)}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	if err != nil {
		return "", &Error{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("upload URL response for '%s' unreadable: %v", file.Name, err)}
	}
	if resp.StatusCode >= 400 {
		return "", classify(resp.StatusCode, raw)
	}

	uploadURL := gjson.GetBytes(raw, "url").Str
	if uploadURL == "" {
		return "", &Error{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("upload URL response for '%s' missing url", file.Name)}
	}

	fields := map[string]string{}
	gjson.GetBytes(raw, "fields").ForEach(func(key, value gjson.Result) bool {
		fields[key.Str] = value.String()
		return true
	})

	finalURL, err := c.postMultipart(ctx, uploadURL, fields, file)
	if err != nil {
		return "", err
	}

	// Some responses carry the object URL directly; prefer it when present.
	if objectURL := gjson.GetBytes(raw, "s3_object_url").Str; objectURL != "" {
		return objectURL, nil
	}
	return finalURL, nil
}

// postMultipart performs the form upload to the signed URL and returns the
// location of the stored object.
func (c *Client) postMultipart(ctx context.Context, uploadURL string, fields map[string]string, file types.FileEntry) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return "", err
		}
	}
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(file.Content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &Error{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("upload of '%s' failed: %v", file.Name, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return "", classify(resp.StatusCode, raw)
	}

	if loc := resp.Header.Get("Location"); loc != "" {
		return loc, nil
	}
	if key := fields["key"]; key != "" {
		return uploadURL + "/" + key, nil
	}
	return uploadURL + "/" + file.Name, nil
}
