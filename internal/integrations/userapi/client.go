// Package userapi is a client for the user service, which owns accounts
// and credentials. The chat service only ever needs to validate that a
// user id exists and to resolve usernames for display.
package userapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kusum-bhattarai/dev-journal/internal/types"
)

var ErrUserNotFound = errors.New("user not found")

type UserService interface {
	GetUser(ctx context.Context, userId int) (types.User, error)
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

type userResponse struct {
	UserId   int    `json:"user_id"`
	Username string `json:"username"`
}

func (c *Client) GetUser(ctx context.Context, userId int) (types.User, error) {
	url := fmt.Sprintf("%s/users/%d", c.baseURL, userId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.User{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.User{}, fmt.Errorf("user service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return types.User{}, ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return types.User{}, fmt.Errorf("user service: unexpected status %d from %s: %s", resp.StatusCode, url, body)
	}

	var ur userResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return types.User{}, fmt.Errorf("decode user response: %w", err)
	}

	return types.User{Id: ur.UserId, Username: ur.Username}, nil
}
