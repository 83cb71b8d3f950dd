/**
 * @description
 * This package provides a client for communicating with the staff paging
 * bot. It encapsulates the logic for making the synchronous call endpoints
 * that summon on-duty bankers and inspectors into the game.
 */
package pagerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the paging bot.
type Client struct {
	baseURL    string
	apiSecret  string
	httpClient *http.Client
}

// NewClient creates a new paging bot client.
func NewClient(baseURL string, apiSecret string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CallRequest defines the request payload for a staff page.
type CallRequest struct {
	Nickname string `json:"nickname"`
}

// CallResponse defines the paging bot's response to a staff page.
type CallResponse struct {
	NotifiedCount int    `json:"notifiedCount"`
	Message       string `json:"message"`
}

// CallBanker pages on-duty bankers on behalf of the named player.
func (c *Client) CallBanker(ctx context.Context, nickname string) (*CallResponse, error) {
	return c.call(ctx, "/call-banker-sync", nickname)
}

// CallInspector pages on-duty inspectors on behalf of the named player.
func (c *Client) CallInspector(ctx context.Context, nickname string) (*CallResponse, error) {
	return c.call(ctx, "/call-inspector-sync", nickname)
}

func (c *Client) call(ctx context.Context, path string, nickname string) (*CallResponse, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("paging bot base url is empty")
	}

	url := c.baseURL + path

	body, err := json.Marshal(CallRequest{Nickname: nickname})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiSecret) != "" {
		req.Header.Set("X-Bot-Api-Secret", strings.TrimSpace(c.apiSecret))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to paging bot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("paging bot returned error status %d", resp.StatusCode)
	}

	var response CallResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}
