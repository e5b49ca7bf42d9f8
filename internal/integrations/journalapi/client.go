// Package journalapi is a client for the journal service. The chat service
// delegates two things to it: checking whether a user may edit a journal,
// and persisting collaborative edits. Both calls forward the end user's own
// bearer token rather than a service credential, so the journal service
// applies its usual authorization.
package journalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const PermissionEditor = "editor"

type JournalService interface {
	GetPermission(ctx context.Context, journalId int, token string) (string, error)
	UpdateContent(ctx context.Context, journalId int, content, token string) error
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type journalResponse struct {
	Permission string `json:"permission"`
}

type updateRequest struct {
	Content string `json:"content"`
}

func (c *Client) GetPermission(ctx context.Context, journalId int, token string) (string, error) {
	url := fmt.Sprintf("%s/api/journals/%d", c.baseURL, journalId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("journal service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("journal service: unexpected status %d from %s: %s", resp.StatusCode, url, body)
	}

	var jr journalResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return "", fmt.Errorf("decode journal response: %w", err)
	}

	return jr.Permission, nil
}

func (c *Client) UpdateContent(ctx context.Context, journalId int, content, token string) error {
	body, err := json.Marshal(updateRequest{Content: content})
	if err != nil {
		return fmt.Errorf("encode update request: %w", err)
	}

	url := fmt.Sprintf("%s/api/journals/%d", c.baseURL, journalId)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("journal service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("journal service: unexpected status %d from %s: %s", resp.StatusCode, url, respBody)
	}

	return nil
}
