// Package metadata fetches visit exports from the metadata server.
package metadata

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nmrcerm/internal/telemetry"
)

const (
	loginPath  = "/auth/login"
	exportPath = "/fandango/export/json/"
)

// ErrNoToken is returned when the login response carries no token.
var ErrNoToken = errors.New("login response has no token")

// Client talks to the metadata server.
type Client struct {
	baseURL    string
	jwtSecret  string
	httpClient *http.Client
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL string

	// JWTSecret verifies token signatures (HS256). Empty means claims are
	// decoded without verification.
	JWTSecret string

	InsecureSkipVerify bool
	Timeout            time.Duration

	// HTTPClient overrides the client built from the options above.
	HTTPClient *http.Client
}

// NewClient creates a metadata server client.
func NewClient(opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
		if opts.InsecureSkipVerify {
			httpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed lab servers
			}
		}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		jwtSecret:  opts.JWTSecret,
		httpClient: httpClient,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (token string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "metadata.login")
	defer func() { telemetry.EndSpan(span, err) }()

	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to log in to metadata server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("login", resp)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if lr.Token == "" {
		return "", ErrNoToken
	}
	return lr.Token, nil
}

// FetchExport downloads the JSON export of visit vid.
func (c *Client) FetchExport(ctx context.Context, token, vid string) (export json.RawMessage, err error) {
	ctx, span := telemetry.StartSpan(ctx, "metadata.fetch_export")
	defer func() { telemetry.EndSpan(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+exportPath+url.PathEscape(vid), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create export request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch export: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("export", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("export of visit %s is not valid JSON", vid)
	}
	return json.RawMessage(data), nil
}

// DecodeToken returns the claims of a token issued by Login.
func (c *Client) DecodeToken(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}

	if c.jwtSecret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("failed to decode token: %w", err)
		}
		return claims, nil
	}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(c.jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	return claims, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%s failed with status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}
