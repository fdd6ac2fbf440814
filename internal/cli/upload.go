// Package cli implements the scriptctl companion tool: local validation of
// a script upload (cover image + JSON payload) and submission to a running
// scriptshare server over its HTTP API.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type ValidationError struct {
	Arg   string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

// UploadRequest is one script submission.
type UploadRequest struct {
	Title        string
	Description  string
	Version      string
	Tags         string // comma-separated
	BaseScriptID string
	ImagePath    string
	JSONPath     string
}

// Validate checks the request locally before any bytes go over the wire:
// required fields present, both files readable, payload a JSON object.
func (r *UploadRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Arg: "-title", Cause: "required"}
	}
	if strings.TrimSpace(r.Description) == "" {
		return &ValidationError{Arg: "-description", Cause: "required"}
	}
	if strings.TrimSpace(r.Version) == "" {
		return &ValidationError{Arg: "-version", Cause: "required"}
	}

	for _, f := range []struct{ arg, path string }{
		{"-image", r.ImagePath},
		{"-json", r.JSONPath},
	} {
		info, err := os.Stat(f.path)
		if err != nil {
			return &ValidationError{Arg: f.arg, Cause: "not found or not accessible"}
		}
		if info.IsDir() {
			return &ValidationError{Arg: f.arg, Cause: "is a directory, expected a file"}
		}
	}

	payload, err := os.ReadFile(r.JSONPath)
	if err != nil {
		return &ValidationError{Arg: "-json", Cause: "not readable"}
	}
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(payload) {
		return &ValidationError{Arg: "-json", Cause: "must contain a JSON object"}
	}

	return nil
}

// BuildForm encodes the request as a multipart form matching what the
// server's upload endpoint expects.
func (r *UploadRequest) BuildForm() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"title":        r.Title,
		"description":  r.Description,
		"version":      r.Version,
		"tags":         r.Tags,
		"baseScriptId": r.BaseScriptID,
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	for _, f := range []struct{ field, path string }{
		{"image", r.ImagePath},
		{"json", r.JSONPath},
	} {
		part, err := w.CreateFormFile(f.field, filepath.Base(f.path))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file %s: %w", f.field, err)
		}
		src, err := os.Open(f.path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", f.path, err)
		}
		_, err = io.Copy(part, src)
		src.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", f.path, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// UploadResponse is the server's answer to a successful submission.
type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Script  struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		BaseScriptID string `json:"baseScriptId"`
	} `json:"script"`
}

// Client talks to a scriptshare server.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a client for the given server.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: http.DefaultClient,
	}
}

// Upload validates and submits the request.
func (c *Client) Upload(ctx context.Context, r *UploadRequest) (*UploadResponse, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	body, contentType, err := r.BuildForm()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/scripts", body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("server rejected upload (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("server rejected upload: status %d", resp.StatusCode)
	}

	var result UploadResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
