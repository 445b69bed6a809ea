package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Catalog defines the backend operations used by the viewer.
type Catalog interface {
	Datasets(ctx context.Context) ([]Dataset, error)
	Jobs(ctx context.Context, datasetID int64) ([]Job, error)
	Videos(ctx context.Context, datasetID int64) ([]Video, error)
	Features(ctx context.Context, query FeatureQuery) ([]FramePayload, error)
}

// StatusError reports a non-200 backend response.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s returned %d", e.Endpoint, e.StatusCode)
}

// Client provides access to the annotation backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Catalog = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// New creates a backend client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("backend base url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Datasets lists every dataset.
func (c *Client) Datasets(ctx context.Context) ([]Dataset, error) {
	var datasets []Dataset
	if err := c.getJSON(ctx, "datasets", nil, &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}

// Jobs lists the jobs run over a dataset.
func (c *Client) Jobs(ctx context.Context, datasetID int64) ([]Job, error) {
	var jobs []Job
	path := "datasets/" + strconv.FormatInt(datasetID, 10) + "/jobs"
	if err := c.getJSON(ctx, path, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Videos lists the videos of a dataset.
func (c *Client) Videos(ctx context.Context, datasetID int64) ([]Video, error) {
	var videos []Video
	path := "datasets/" + strconv.FormatInt(datasetID, 10) + "/videos"
	if err := c.getJSON(ctx, path, nil, &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

// Features fetches per-frame payloads for [query.Start, query.End).
func (c *Client) Features(ctx context.Context, query FeatureQuery) ([]FramePayload, error) {
	if query.Len() == 0 {
		return nil, fmt.Errorf("empty frame range [%d, %d)", query.Start, query.End)
	}
	stride := query.Stride
	if stride <= 0 {
		stride = 1
	}
	path := fmt.Sprintf("datasets/%d/jobs/%d/features/%d", query.DatasetID, query.JobID, query.VideoID)
	params := url.Values{}
	params.Set("columns", query.columnsParam())
	params.Set("start", strconv.Itoa(query.Start))
	params.Set("end", strconv.Itoa(query.End))
	params.Set("stride", strconv.Itoa(stride))
	params.Set("category", strconv.Itoa(query.Category))
	params.Set("threshold", query.thresholdParam())

	var payloads []FramePayload
	if err := c.getJSON(ctx, path, params, &payloads); err != nil {
		return nil, err
	}
	return payloads, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dst any) error {
	endpoint, err := url.Parse(c.baseURL + "/" + path)
	if err != nil {
		return fmt.Errorf("parse backend url: %w", err)
	}
	if len(params) > 0 {
		endpoint.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request %s (latency=%v): %w", path, latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Endpoint: path, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
