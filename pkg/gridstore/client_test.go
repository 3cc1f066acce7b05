package gridstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteberry/statsync/pkg/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) ClientInterface {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(logrus.New(), &Config{
		URL:          srv.URL,
		APIKey:       "test-key",
		Document:     "stats",
		QueryTimeout: 5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	return c
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	require.ErrorIs(t, cfg.Validate(), ErrURLRequired)

	cfg.URL = "http://grid.local"
	require.NoError(t, cfg.Validate())

	cfg.SetDefaults()
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 2*time.Minute, cfg.WriteTimeout)
}

func TestListHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/documents/stats/tabs/LinkedIn/rows", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("start"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(rowsResponse{
			Rows: [][]any{{"Date", "Views", "Fans"}},
		})
	})

	headers, err := c.ListHeaders(context.Background(), "LinkedIn")
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Views", "Fans"}, headers)
}

func TestListHeadersEmptyTab(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(rowsResponse{})
	})

	headers, err := c.ListHeaders(context.Background(), "LinkedIn")
	require.NoError(t, err)
	assert.Empty(t, headers)
}

func TestWriteRangeMapsOffsetToGridRow(t *testing.T) {
	var gotStart, gotLimit string

	var gotRows rowsResponse

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)

		gotStart = r.URL.Query().Get("start")
		gotLimit = r.URL.Query().Get("limit")

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRows))
		w.WriteHeader(http.StatusOK)
	})

	// Data offset 1001 sits below the header row.
	err := c.WriteRange(context.Background(), "LinkedIn", 1001, [][]any{
		{"2024-03-01", 10.0},
		{"2024-03-02", 11.0},
	})
	require.NoError(t, err)

	assert.Equal(t, "1002", gotStart)
	assert.Equal(t, "2", gotLimit)
	require.Len(t, gotRows.Rows, 2)
	assert.Equal(t, "2024-03-01", gotRows.Rows[0][0])
}

func TestWriteRangeEmptyIsNoop(t *testing.T) {
	c := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected for an empty write")
	})

	require.NoError(t, c.WriteRange(context.Background(), "LinkedIn", 1, nil))
}

func TestClearRangeSparesHeader(t *testing.T) {
	var gotStart string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)

		gotStart = r.URL.Query().Get("start")
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.ClearRange(context.Background(), "LinkedIn"))
	assert.Equal(t, "2", gotStart)
}

func TestRowCountExcludesHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/documents/stats/tabs/LinkedIn/meta", r.URL.Path)

		_ = json.NewEncoder(w).Encode(metaResponse{RowCount: 401, ColumnCount: 12})
	})

	count, err := c.RowCount(context.Background(), "LinkedIn")
	require.NoError(t, err)
	assert.Equal(t, 400, count)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "quota", status: http.StatusTooManyRequests, wantErr: retry.ErrQuotaExceeded},
		{name: "unavailable", status: http.StatusServiceUnavailable, wantErr: retry.ErrUnavailable},
		{name: "server error", status: http.StatusInternalServerError, wantErr: retry.ErrServerError},
		{name: "bad gateway", status: http.StatusBadGateway, wantErr: retry.ErrServerError},
		{name: "not found", status: http.StatusNotFound, wantErr: retry.ErrPermanent},
		{name: "forbidden", status: http.StatusForbidden, wantErr: retry.ErrPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			_, err := c.ListHeaders(context.Background(), "LinkedIn")
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "A"},
		{2, "B"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
		{0, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ColumnLetter(tt.n), "n=%d", tt.n)
	}
}

func TestRangeRef(t *testing.T) {
	assert.Equal(t, "A1:L1", RangeRef(1, 12))
	assert.Equal(t, "A5:A5", RangeRef(5, 0))
}
