// Package records provides a client for an external tabular record store
// (Airtable-style REST API: row creation plus per-row attachment upload).
package records

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"scope-chat-go/internal/config"
)

// ErrNotConfigured 表示记录服务的必要凭证缺失，调用前即可判定失败。
var ErrNotConfigured = errors.New("record store is not configured")

// Client defines the interface for the record store client.
type Client interface {
	// CreateRecord 创建一行记录并返回其 ID。
	CreateRecord(ctx context.Context, fields map[string]interface{}) (string, error)
	// UploadAttachment 向已创建的记录上传一个二进制附件。
	UploadAttachment(ctx context.Context, recordID, filename, contentType string, data []byte) error
}

type httpClient struct {
	cfg    config.RecordsConfig
	client *http.Client
}

// NewClient creates a new record store client from the config.
func NewClient(cfg config.RecordsConfig) Client {
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (c *httpClient) configured() error {
	if c.cfg.APIKey == "" || c.cfg.BaseID == "" || c.cfg.Table == "" {
		return ErrNotConfigured
	}
	return nil
}

type createRecordRequest struct {
	Fields map[string]interface{} `json:"fields"`
}

type createRecordResponse struct {
	ID string `json:"id"`
}

// CreateRecord POSTs a single row to the table creation endpoint.
func (c *httpClient) CreateRecord(ctx context.Context, fields map[string]interface{}) (string, error) {
	if err := c.configured(); err != nil {
		return "", err
	}

	reqBytes, err := json.Marshal(createRecordRequest{Fields: fields})
	if err != nil {
		return "", fmt.Errorf("failed to marshal record request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v0/%s/%s", c.cfg.BaseURL, c.cfg.BaseID, url.PathEscape(c.cfg.Table))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create record request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call record store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("record store returned non-2xx status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var created createRecordResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode record response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("record store returned an empty record id")
	}
	return created.ID, nil
}

type uploadAttachmentRequest struct {
	ContentType string `json:"contentType"`
	File        string `json:"file"`
	Filename    string `json:"filename"`
}

// UploadAttachment POSTs base64 content to the per-record upload endpoint.
func (c *httpClient) UploadAttachment(ctx context.Context, recordID, filename, contentType string, data []byte) error {
	if err := c.configured(); err != nil {
		return err
	}
	if recordID == "" {
		return fmt.Errorf("attachment upload requires a record id")
	}

	contentBase := c.cfg.ContentBaseURL
	if contentBase == "" {
		contentBase = c.cfg.BaseURL
	}

	reqBytes, err := json.Marshal(uploadAttachmentRequest{
		ContentType: contentType,
		File:        base64.StdEncoding.EncodeToString(data),
		Filename:    filename,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal attachment request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v0/%s/%s/%s/uploadAttachment",
		contentBase, c.cfg.BaseID, recordID, url.PathEscape(c.cfg.AttachmentField))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create attachment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call attachment endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("attachment upload returned non-2xx status: %s, body: %s", resp.Status, string(bodyBytes))
	}
	return nil
}
