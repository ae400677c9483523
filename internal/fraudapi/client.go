// Package fraudapi talks to the external fraud-scoring service.
package fraudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/securebank/txwatch/internal/domain"
)

const DefaultTimeout = 10 * time.Second

// maxErrorBody bounds how much of a failed response is kept for messages.
const maxErrorBody = 4 << 10

// Client is a thin HTTP boundary: no caching, no retries.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the service at baseURL. A nil httpClient
// gets one with DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// FetchTransactions returns the user's transactions in server order.
func (c *Client) FetchTransactions(ctx context.Context, userID string) ([]domain.TransactionSnapshot, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users/%s/transactions", c.baseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{UserID: userID, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{UserID: userID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			UserID:     userID,
			StatusCode: resp.StatusCode,
			Err:        errors.New(readMessage(resp.Body)),
		}
	}

	var snaps []domain.TransactionSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snaps); err != nil {
		return nil, &FetchError{UserID: userID, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return snaps, nil
}

// Submit sends a new transfer to the scorer and returns its verdict.
func (c *Client) Submit(ctx context.Context, sub domain.SubmitRequest) (*domain.Verdict, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transaction/validate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit transaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SubmitError{StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}

	var v domain.Verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}
	return &v, nil
}

// readMessage extracts {"error": "..."} or {"detail": "..."} from an error
// body, falling back to the raw text.
func readMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "empty response"
	}
	return msg
}
