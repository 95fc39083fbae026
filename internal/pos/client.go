// Package pos pulls order lines from remote point-of-sale APIs and maps them
// onto models.RawLine.
package pos

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
	"sync"
	"time"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/utils"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

var (
	ErrUnauthorized  = errors.New("pos api rejected credentials")
	ErrNotAuthorized = errors.New("pos client has no access token, authenticate first")
)

const (
	userAgent        = "salescount/1.0"
	loginPath        = "/authentication/v1/authentication/login"
	machineClient    = "TOAST_MACHINE_CLIENT"
	restaurantHeader = "Toast-Restaurant-External-ID"
)

var restaurantPaths = []string{
	"/config/v2/restaurants",
	"/restaurants/v1/restaurants",
	"/config/v1/restaurants",
}

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	pageSize     int
	locations    map[string]string
	zone         *time.Location
	http         *retryablehttp.Client

	mu    sync.RWMutex
	token string
}

// NewClient builds a client from the pos section of the configuration.
// Timestamps are converted to zone before they reach the bucketer.
func NewClient(cfg models.POSConfig, zone *time.Location) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = leveledLogger{utils.Log}
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	if cfg.Timeout > 0 {
		retryClient.HTTPClient.Timeout = cfg.Timeout
	}
	if zone == nil {
		zone = time.UTC
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		pageSize:     pageSize,
		locations:    cfg.Locations,
		zone:         zone,
		http:         retryClient,
	}
}

// SetToken installs a bearer token obtained elsewhere.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authenticate performs the machine-client login and keeps the access token
// for later calls.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.clientID == "" || c.clientSecret == "" {
		return fmt.Errorf("%w: missing client id or secret", ErrUnauthorized)
	}
	payload := map[string]string{
		"clientId":       c.clientID,
		"clientSecret":   c.clientSecret,
		"userAccessType": machineClient,
	}
	body, err := c.do(ctx, http.MethodPost, loginPath, nil, nil, payload, false)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	token := gjson.Get(body, "token.accessToken").String()
	if token == "" {
		return fmt.Errorf("%w: no access token in login response", ErrUnauthorized)
	}
	c.SetToken(token)
	utils.Log.WithField("base_url", c.baseURL).Debug("authenticated against pos api")
	return nil
}

// do sends one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, headers map[string]string, payload interface{}, auth bool) (string, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var rawBody interface{}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return "", err
		}
		rawBody = bytes.NewReader(b)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, rawBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token := c.bearer()
		if token == "" {
			return "", ErrNotAuthorized
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response from %s: %w", path, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: %s returned %d", ErrUnauthorized, path, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, truncate(string(b), 200))
	}
	if !gjson.Valid(string(b)) {
		return "", fmt.Errorf("%s returned invalid json", path)
	}
	return string(b), nil
}

// LocationName maps a restaurant GUID to its configured display name.
func (c *Client) LocationName(guid string) string {
	if name, ok := c.locations[guid]; ok {
		return name
	}
	return guid
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// leveledLogger routes retryablehttp's logging through logrus.
type leveledLogger struct {
	log *logrus.Logger
}

func (l leveledLogger) fields(kv []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}

func (l leveledLogger) Error(msg string, kv ...interface{}) {
	l.log.WithFields(l.fields(kv)).Error(msg)
}

func (l leveledLogger) Info(msg string, kv ...interface{}) {
	l.log.WithFields(l.fields(kv)).Debug(msg)
}

func (l leveledLogger) Debug(msg string, kv ...interface{}) {
	l.log.WithFields(l.fields(kv)).Debug(msg)
}

func (l leveledLogger) Warn(msg string, kv ...interface{}) {
	l.log.WithFields(l.fields(kv)).Warn(msg)
}
