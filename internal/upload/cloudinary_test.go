package upload_test

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"etalase/internal/models"
	"etalase/internal/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudinaryClient_UploadReturnsSecureURL(t *testing.T) {
	var gotPath, gotPreset, gotFile, gotFilename string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		gotPreset = r.FormValue("upload_preset")
		f, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotFile = string(data)
		gotFilename = header.Filename
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"secure_url":"https://res.example.com/fan.png","public_id":"fan"}`))
	}))
	defer server.Close()

	client := upload.NewCloudinaryClient(upload.Config{CloudName: "demo", UploadPreset: "unsigned", BaseURL: server.URL})
	url, err := client.Upload(context.Background(), "fan.png", strings.NewReader("png-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "https://res.example.com/fan.png", url)
	assert.Equal(t, "/v1_1/demo/image/upload", gotPath)
	assert.Equal(t, "unsigned", gotPreset)
	assert.Equal(t, "png-bytes", gotFile)
	assert.Equal(t, "fan.png", gotFilename)
}

func TestCloudinaryClient_MissingSecureURLIsUploadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Upload preset not found"}}`))
	}))
	defer server.Close()

	client := upload.NewCloudinaryClient(upload.Config{CloudName: "demo", UploadPreset: "nope", BaseURL: server.URL})
	_, err := client.Upload(context.Background(), "a.png", strings.NewReader("x"))

	assert.ErrorIs(t, err, models.ErrUploadFailure)
	assert.Contains(t, err.Error(), "Upload preset not found")
}

func TestCloudinaryClient_NonJSONBodyIsUploadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	client := upload.NewCloudinaryClient(upload.Config{CloudName: "demo", UploadPreset: "p", BaseURL: server.URL})
	_, err := client.Upload(context.Background(), "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, models.ErrUploadFailure)
}

func TestCloudinaryClient_NetworkErrorIsUploadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	var logs bytes.Buffer
	previous := log.Writer()
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(previous) })

	client := upload.NewCloudinaryClient(upload.Config{CloudName: "demo", UploadPreset: "p", BaseURL: baseURL})
	_, err := client.Upload(context.Background(), "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, models.ErrUploadFailure)
	// the caller decides whether to log
	assert.Empty(t, logs.String())
}

func TestCloudinaryClient_UnconfiguredFailsWithoutNetworkCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer server.Close()

	client := upload.NewCloudinaryClient(upload.Config{BaseURL: server.URL})
	_, err := client.Upload(context.Background(), "a.png", strings.NewReader("x"))

	assert.ErrorIs(t, err, models.ErrUploadFailure)
	assert.False(t, called)
}
