package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/byteberry/statsync/pkg/metrics"
	"github.com/byteberry/statsync/pkg/retry"
)

// Define static errors
var (
	ErrPaginationStalled = errors.New("pagination cursor did not advance")
)

// StreamSpec identifies one metric stream to pull
type StreamSpec struct {
	// Name labels the stream in merge warnings and reports
	Name string `yaml:"name"`
	// Path is the API path for the stream, e.g. /v2/organizations/123/followers
	Path string `yaml:"path"`
	// Fields declares the schema the stream contributes
	Fields []metrics.FieldSpec `yaml:"fields"`
}

// pagePoint is one dated measurement in a source API page
type pagePoint struct {
	Date   string             `json:"date"`
	Values map[string]float64 `json:"values"`
}

// pageResponse represents one page of the source API response
type pageResponse struct {
	Points     []pagePoint `json:"points"`
	NextCursor string      `json:"nextCursor"`
}

// ClientInterface defines the methods for pulling metric streams
type ClientInterface interface {
	// FetchStream pulls all points for a spec within [from, to], following
	// pagination cursors until exhausted
	FetchStream(ctx context.Context, spec StreamSpec, from, to metrics.Date) (*metrics.MetricStream, error)
	// Start initializes the client
	Start() error
	// Stop closes the client
	Stop() error
}

// client implements ClientInterface over HTTP, guarded by a circuit breaker
// so a dead upstream fails fast instead of burning the call budget.
type client struct {
	log          logrus.FieldLogger
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker[*pageResponse]
	baseURL      string
	token        string
	pageSize     int
	debug        bool
	queryTimeout time.Duration
}

// NewClient creates a new metric source client
func NewClient(log logrus.FieldLogger, cfg *Config) (ClientInterface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clog := log.WithField("component", "source")

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     cfg.KeepAlive,
		DisableKeepAlives:   false,
	}

	breaker := gobreaker.NewCircuitBreaker[*pageResponse](gobreaker.Settings{
		Name:     "metric-source",
		Interval: time.Minute,
		Timeout:  cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}

			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			clog.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Quota pushback is the governor's problem, not an upstream
			// health signal.
			return err == nil || errors.Is(err, retry.ErrQuotaExceeded)
		},
	})

	c := &client{
		log:          clog,
		httpClient:   &http.Client{Transport: transport},
		breaker:      breaker,
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		token:        cfg.Token,
		pageSize:     cfg.PageSize,
		debug:        cfg.Debug,
		queryTimeout: cfg.QueryTimeout,
	}

	return c, nil
}

func (c *client) Start() error {
	c.log.WithField("url", c.baseURL).Info("Metric source client ready")

	return nil
}

func (c *client) Stop() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}

	c.log.Info("Closed metric source client")

	return nil
}

func (c *client) FetchStream(ctx context.Context, spec StreamSpec, from, to metrics.Date) (*metrics.MetricStream, error) {
	stream := &metrics.MetricStream{
		Name:   spec.Name,
		Fields: spec.Fields,
	}

	byDate := make(map[string]*metrics.MetricRecord)

	cursor := ""

	for {
		page, err := c.fetchPage(ctx, spec.Path, from, to, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", spec.Name, err)
		}

		for _, point := range page.Points {
			date, err := metrics.ParseDate(point.Date)
			if err != nil {
				c.log.WithFields(logrus.Fields{
					"stream": spec.Name,
					"date":   point.Date,
				}).Warn("Skipping point with unparsable date")

				continue
			}

			record, ok := byDate[date.String()]
			if !ok {
				record = &metrics.MetricRecord{Date: date, Values: make(map[string]any)}
				byDate[date.String()] = record
			}

			for name, value := range point.Values {
				record.Values[name] = value
			}
		}

		if page.NextCursor == "" {
			break
		}

		if page.NextCursor == cursor {
			return nil, fmt.Errorf("%w: %s", ErrPaginationStalled, spec.Name)
		}

		cursor = page.NextCursor
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}

	sort.Strings(dates)

	for _, d := range dates {
		stream.Records = append(stream.Records, *byDate[d])
	}

	c.log.WithFields(logrus.Fields{
		"stream": spec.Name,
		"from":   from.String(),
		"to":     to.String(),
		"points": len(stream.Records),
	}).Debug("Fetched stream")

	return stream, nil
}

func (c *client) fetchPage(ctx context.Context, path string, from, to metrics.Date, cursor string) (*pageResponse, error) {
	page, err := c.breaker.Execute(func() (*pageResponse, error) {
		return c.doFetchPage(ctx, path, from, to, cursor)
	})
	if err != nil {
		// An open breaker reads as the upstream being down.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", retry.ErrUnavailable, err.Error())
		}

		return nil, err
	}

	return page, nil
}

func (c *client) doFetchPage(ctx context.Context, path string, from, to metrics.Date, cursor string) (*pageResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("from", from.String())
	q.Set("to", to.String())
	q.Set("pageSize", strconv.Itoa(c.pageSize))

	if cursor != "" {
		q.Set("cursor", cursor)
	}

	reqURL := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	if c.debug {
		c.log.WithField("url", reqURL).Debug("Executing source request")
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

	var page pageResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &page, nil
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
