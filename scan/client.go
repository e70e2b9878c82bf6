package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/linesmerrill/donation-checkin-api/models"
	"github.com/linesmerrill/donation-checkin-api/verification"
)

var (
	// ErrUnauthorized is returned when the API rejects the operator credentials
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited is returned when the operator is verifying too quickly
	ErrRateLimited = errors.New("rate limited")
)

// Client talks to the check-in API on behalf of one operator
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	bearer     string
}

// NewClient returns a client for the API rooted at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Login exchanges operator credentials for a bearer token
func (c *Client) Login(ctx context.Context, email, password string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/auth/token", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(email, password)

	var body struct {
		Token string `json:"token"`
	}
	if err := c.do(req, &body); err != nil {
		return err
	}
	if body.Token == "" {
		return fmt.Errorf("%w: empty token in response", ErrUnauthorized)
	}
	c.bearer = body.Token
	return nil
}

// Logout revokes the bearer token
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/api/v1/auth/logout", nil)
	if err != nil {
		return err
	}
	err = c.do(req, nil)
	c.bearer = ""
	return err
}

// Verify submits token for verification
func (c *Client) Verify(ctx context.Context, token string) (*models.VerificationResult, error) {
	b, err := json.Marshal(models.VerifyRequest{Token: token})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/verify", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res := &models.VerificationResult{}
	if err := c.do(req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Lookup previews the registration for token without verifying it
func (c *Client) Lookup(ctx context.Context, token string) (*models.Registration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v1/verify/"+url.PathEscape(token), nil)
	if err != nil {
		return nil, err
	}
	registration := &models.Registration{}
	if err := c.do(req, registration); err != nil {
		return nil, err
	}
	return registration, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// network failures are transient, verify is safe to resend
		return fmt.Errorf("%w: %w", verification.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	var apiErr models.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)
	return errorFor(resp.StatusCode, apiErr)
}

func errorFor(status int, apiErr models.ErrorResponse) error {
	switch apiErr.Code {
	case models.CodeMalformedToken:
		return verification.ErrMalformedToken
	case models.CodeTokenNotFound:
		return verification.ErrTokenNotFound
	case models.CodeRateLimited:
		return ErrRateLimited
	case models.CodeStoreUnavailable:
		return fmt.Errorf("%w: %s", verification.ErrStoreUnavailable, apiErr.Error)
	}
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusNotFound:
		return verification.ErrTokenNotFound
	case status == http.StatusRequestTimeout || status >= 500:
		return fmt.Errorf("%w: status %d", verification.ErrStoreUnavailable, status)
	}
	if apiErr.Error != "" {
		return fmt.Errorf("request failed with status %d: %s", status, apiErr.Error)
	}
	return fmt.Errorf("request failed with status %d", status)
}
