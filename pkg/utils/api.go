package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// DefaultUserAgent is the client identity sent with every request
const DefaultUserAgent = "mdown/0.1.0"

// API issues GET requests against a base URL with a fixed client identity
type API struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewAPI creates an API client for baseURL
func NewAPI(baseURL, userAgent string) *API {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &API{client: http.DefaultClient, baseURL: baseURL, userAgent: userAgent}
}

// WithClient replaces the underlying http client
func (a *API) WithClient(client *http.Client) *API {
	a.client = client
	return a
}

// BaseURL returns the configured base URL
func (a *API) BaseURL() string {
	return a.baseURL
}

func (a *API) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, NetworkError(rawURL, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", a.userAgent)
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, NetworkError(rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	return resp, nil
}

// Get fetches path relative to the base URL and decodes the JSON body into v
func (a *API) Get(ctx context.Context, path string, params url.Values, v any) error {
	if params != nil {
		path += "?" + params.Encode()
	}
	full := fmt.Sprintf("%s%s", a.baseURL, path)
	resp, err := a.do(ctx, full)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return JsonError(full, err)
	}
	return nil
}

// Stream fetches an absolute URL and returns its body with the declared content length.
// The caller must close the body. Length is -1 when the server does not declare it.
func (a *API) Stream(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	resp, err := a.do(ctx, rawURL)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}
