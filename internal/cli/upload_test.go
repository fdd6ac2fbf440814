package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func setupUploadFiles(t *testing.T, jsonContent string) (imagePath, jsonPath string) {
	t.Helper()
	tmpDir := t.TempDir()

	imagePath = filepath.Join(tmpDir, "cover.png")
	if err := os.WriteFile(imagePath, []byte("png-bytes"), 0644); err != nil {
		t.Fatalf("failed to create test image: %v", err)
	}

	jsonPath = filepath.Join(tmpDir, "script.json")
	if err := os.WriteFile(jsonPath, []byte(jsonContent), 0644); err != nil {
		t.Fatalf("failed to create test json: %v", err)
	}
	return imagePath, jsonPath
}

func validRequest(t *testing.T) *UploadRequest {
	t.Helper()
	imagePath, jsonPath := setupUploadFiles(t, `{"chapters":3}`)
	return &UploadRequest{
		Title:       "Manor Mystery",
		Description: "A whodunit",
		Version:     "v1.0",
		Tags:        "mystery,horror",
		ImagePath:   imagePath,
		JSONPath:    jsonPath,
	}
}

func assertValidationError(t *testing.T, err error, expectedArg string) {
	t.Helper()
	validationErr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T (%v)", err, err)
	}
	if validationErr.Arg != expectedArg {
		t.Errorf("expected Arg %q, got %q", expectedArg, validationErr.Arg)
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid request passes", func(t *testing.T) {
		if err := validRequest(t).Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing title", func(t *testing.T) {
		req := validRequest(t)
		req.Title = "  "
		assertValidationError(t, req.Validate(), "-title")
	})

	t.Run("missing version", func(t *testing.T) {
		req := validRequest(t)
		req.Version = ""
		assertValidationError(t, req.Validate(), "-version")
	})

	t.Run("image not found", func(t *testing.T) {
		req := validRequest(t)
		req.ImagePath = "/nonexistent/cover.png"
		assertValidationError(t, req.Validate(), "-image")
	})

	t.Run("image is a directory", func(t *testing.T) {
		req := validRequest(t)
		req.ImagePath = t.TempDir()
		assertValidationError(t, req.Validate(), "-image")
	})

	t.Run("malformed json payload", func(t *testing.T) {
		req := validRequest(t)
		_, req.JSONPath = setupUploadFiles(t, `{"broken":`)
		assertValidationError(t, req.Validate(), "-json")
	})

	t.Run("non-object json payload", func(t *testing.T) {
		req := validRequest(t)
		_, req.JSONPath = setupUploadFiles(t, `[1,2,3]`)
		assertValidationError(t, req.Validate(), "-json")
	})
}

func TestBuildForm(t *testing.T) {
	req := validRequest(t)
	req.BaseScriptID = "42"

	body, contentType, err := req.BuildForm()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Round-trip through the server-side multipart parser.
	httpReq := httptest.NewRequest(http.MethodPost, "/api/scripts", body)
	httpReq.Header.Set("Content-Type", contentType)
	if err := httpReq.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("failed to parse form: %v", err)
	}

	for field, want := range map[string]string{
		"title":        "Manor Mystery",
		"version":      "v1.0",
		"tags":         "mystery,horror",
		"baseScriptId": "42",
	} {
		if got := httpReq.FormValue(field); got != want {
			t.Errorf("field %s = %q, want %q", field, got, want)
		}
	}

	for _, field := range []string{"image", "json"} {
		if _, _, err := httpReq.FormFile(field); err != nil {
			t.Errorf("missing form file %s: %v", field, err)
		}
	}
}

func TestClientUpload(t *testing.T) {
	t.Run("successful upload", func(t *testing.T) {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			if r.URL.Path != "/api/scripts" || r.Method != http.MethodPost {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"message": "script uploaded and published",
				"script":  map[string]string{"id": "123", "status": "approved", "baseScriptId": "123"},
			})
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "tok-abc")
		result, err := client.Upload(context.Background(), validRequest(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Script.ID != "123" || result.Script.Status != "approved" {
			t.Errorf("unexpected result: %+v", result)
		}
		if gotAuth != "Bearer tok-abc" {
			t.Errorf("expected bearer token, got %q", gotAuth)
		}
	})

	t.Run("server error surfaces message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "permission denied"})
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "")
		if _, err := client.Upload(context.Background(), validRequest(t)); err == nil {
			t.Fatal("expected error from 403 response")
		}
	})

	t.Run("local validation runs before any request", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("server must not be contacted for an invalid request")
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "")
		req := validRequest(t)
		req.Title = ""
		if _, err := client.Upload(context.Background(), req); err == nil {
			t.Fatal("expected validation error")
		}
	})
}
