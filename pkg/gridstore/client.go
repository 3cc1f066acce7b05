package gridstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/byteberry/statsync/pkg/retry"
)

// The header row occupies absolute grid row 1; data region offsets are
// 1-based and start directly below it.
const headerRow = 1

// rowsResponse represents the JSON response for a row range read
type rowsResponse struct {
	Rows [][]any `json:"rows"`
}

// metaResponse represents the JSON response for tab metadata
type metaResponse struct {
	RowCount    int `json:"rowCount"`
	ColumnCount int `json:"columnCount"`
}

// ClientInterface defines the methods for interacting with the tabular store
type ClientInterface interface {
	// ListHeaders returns the header row of a tab, empty when blank
	ListHeaders(ctx context.Context, tab string) ([]string, error)
	// WriteHeaders replaces the header row of a tab
	WriteHeaders(ctx context.Context, tab string, headers []string) error
	// ReadRange reads limit data rows starting at a 1-based data offset;
	// limit <= 0 reads through the end
	ReadRange(ctx context.Context, tab string, offset, limit int) ([][]any, error)
	// WriteRange overwrites data rows starting at a 1-based data offset
	WriteRange(ctx context.Context, tab string, offset int, rows [][]any) error
	// ClearRange removes all data rows, leaving the header row in place
	ClearRange(ctx context.Context, tab string) error
	// RowCount returns the number of data rows in a tab
	RowCount(ctx context.Context, tab string) (int, error)
	// Start initializes the client
	Start() error
	// Stop closes the client
	Stop() error
}

// client implements the ClientInterface using HTTP
type client struct {
	log          logrus.FieldLogger
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	document     string
	debug        bool
	queryTimeout time.Duration
	writeTimeout time.Duration
}

// NewClient creates a new HTTP-based tabular store client
func NewClient(log logrus.FieldLogger, cfg *Config) (ClientInterface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Set defaults
	cfg.SetDefaults()

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     cfg.KeepAlive,
		DisableKeepAlives:   false,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   0, // Per-request timeouts
	}

	c := &client{
		log:          log.WithField("component", "gridstore"),
		httpClient:   httpClient,
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		apiKey:       cfg.APIKey,
		document:     cfg.Document,
		debug:        cfg.Debug,
		queryTimeout: cfg.QueryTimeout,
		writeTimeout: cfg.WriteTimeout,
	}

	return c, nil
}

func (c *client) Start() error {
	// Test connectivity
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.doRequest(ctx, http.MethodGet, c.documentPath(), nil, c.queryTimeout); err != nil {
		return fmt.Errorf("failed to connect to tabular store: %w", err)
	}

	c.log.Info("Connected to tabular store")

	return nil
}

func (c *client) Stop() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}

	c.log.Info("Closed tabular store client")

	return nil
}

func (c *client) ListHeaders(ctx context.Context, tab string) ([]string, error) {
	path := c.tabPath(tab) + "/rows?" + rangeQuery(headerRow, 1)

	body, err := c.doRequest(ctx, http.MethodGet, path, nil, c.queryTimeout)
	if err != nil {
		return nil, fmt.Errorf("header read failed: %w", err)
	}

	var result rowsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(result.Rows) == 0 {
		return nil, nil
	}

	headers := make([]string, 0, len(result.Rows[0]))
	for _, cell := range result.Rows[0] {
		headers = append(headers, fmt.Sprint(cell))
	}

	return headers, nil
}

func (c *client) WriteHeaders(ctx context.Context, tab string, headers []string) error {
	row := make([]any, 0, len(headers))
	for _, h := range headers {
		row = append(row, h)
	}

	return c.putRows(ctx, tab, headerRow, [][]any{row})
}

func (c *client) ReadRange(ctx context.Context, tab string, offset, limit int) ([][]any, error) {
	path := c.tabPath(tab) + "/rows?" + rangeQuery(dataRow(offset), limit)

	body, err := c.doRequest(ctx, http.MethodGet, path, nil, c.queryTimeout)
	if err != nil {
		return nil, fmt.Errorf("range read failed: %w", err)
	}

	var result rowsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result.Rows, nil
}

func (c *client) WriteRange(ctx context.Context, tab string, offset int, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	return c.putRows(ctx, tab, dataRow(offset), rows)
}

func (c *client) ClearRange(ctx context.Context, tab string) error {
	path := c.tabPath(tab) + "/rows?" + rangeQuery(dataRow(1), 0)

	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil, c.writeTimeout); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}

	return nil
}

func (c *client) RowCount(ctx context.Context, tab string) (int, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.tabPath(tab)+"/meta", nil, c.queryTimeout)
	if err != nil {
		return 0, fmt.Errorf("meta read failed: %w", err)
	}

	var meta metaResponse
	if err := json.Unmarshal(body, &meta); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	if meta.RowCount <= headerRow {
		return 0, nil
	}

	return meta.RowCount - headerRow, nil
}

func (c *client) putRows(ctx context.Context, tab string, start int, rows [][]any) error {
	payload, err := json.Marshal(rowsResponse{Rows: rows})
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}

	path := c.tabPath(tab) + "/rows?" + rangeQuery(start, len(rows))

	if _, err := c.doRequest(ctx, http.MethodPut, path, payload, c.writeTimeout); err != nil {
		return fmt.Errorf("row write failed: %w", err)
	}

	return nil
}

func (c *client) doRequest(ctx context.Context, method, path string, payload []byte, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if c.debug {
		c.log.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"bytes":  len(payload),
		}).Debug("Executing tabular store request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.WithError(closeErr).Debug("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	return body, nil
}

// classifyStatus maps an HTTP failure onto the retry taxonomy
func classifyStatus(status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	if len(message) > 200 {
		message = message[:200]
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w (status %d): %s", retry.ErrQuotaExceeded, status, message)
	case status == http.StatusServiceUnavailable:
		return fmt.Errorf("%w (status %d): %s", retry.ErrUnavailable, status, message)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w (status %d): %s", retry.ErrServerError, status, message)
	default:
		return fmt.Errorf("%w (status %d): %s", retry.ErrPermanent, status, message)
	}
}

func (c *client) documentPath() string {
	return "/v1/documents/" + url.PathEscape(c.document)
}

func (c *client) tabPath(tab string) string {
	return c.documentPath() + "/tabs/" + url.PathEscape(tab)
}

// dataRow maps a 1-based data offset to its absolute grid row
func dataRow(offset int) int {
	return offset + headerRow
}

func rangeQuery(start, limit int) string {
	q := url.Values{}
	q.Set("start", strconv.Itoa(start))

	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	return q.Encode()
}
