// Package upload forwards image files to a Cloudinary-compatible unsigned
// upload endpoint and returns the hosted URL.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"etalase/internal/models"
)

const DefaultBaseURL = "https://api.cloudinary.com"

// Config holds the namespace and preset the host expects.
type Config struct {
	CloudName    string
	UploadPreset string
	BaseURL      string
	Timeout      time.Duration
}

// CloudinaryClient uploads files with one multipart POST per call.
type CloudinaryClient struct {
	cfg        Config
	HTTPClient *http.Client
}

func NewCloudinaryClient(cfg Config) *CloudinaryClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CloudinaryClient{
		cfg: cfg,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Upload sends the file and returns its secure URL. Every failure, including a
// transport error, is reported as models.ErrUploadFailure.
func (c *CloudinaryClient) Upload(ctx context.Context, filename string, file io.Reader) (string, error) {
	if c.cfg.CloudName == "" || c.cfg.UploadPreset == "" {
		return "", fmt.Errorf("%w: cloud name and upload preset must be configured", models.ErrUploadFailure)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUploadFailure, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("%w: reading file: %v", models.ErrUploadFailure, err)
	}
	if err := writer.WriteField("upload_preset", c.cfg.UploadPreset); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUploadFailure, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUploadFailure, err)
	}

	reqURL := fmt.Sprintf("%s/v1_1/%s/image/upload", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", models.ErrUploadFailure, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUploadFailure, err)
	}
	defer resp.Body.Close()

	var decoded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: host returned status %d with unreadable body", models.ErrUploadFailure, resp.StatusCode)
	}
	if decoded.SecureURL == "" {
		reason := fmt.Sprintf("host returned status %d without secure_url", resp.StatusCode)
		if decoded.Error != nil && decoded.Error.Message != "" {
			reason = decoded.Error.Message
		}
		return "", fmt.Errorf("%w: %s", models.ErrUploadFailure, reason)
	}
	return decoded.SecureURL, nil
}
