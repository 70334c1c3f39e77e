package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cbl315/opinion-builder-tools/internal/domain"
	"github.com/cbl315/opinion-builder-tools/internal/obs"
	"github.com/cbl315/opinion-builder-tools/internal/query"
	"github.com/cbl315/opinion-builder-tools/internal/search"
	"github.com/cbl315/opinion-builder-tools/internal/server/handler"
	"github.com/cbl315/opinion-builder-tools/internal/store"
	"github.com/cbl315/opinion-builder-tools/internal/stream"
)

type staticConn struct {
	status stream.Status
}

func (s staticConn) Status() stream.Status { return s.status }

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	idx := search.NewIndex(2)
	st := store.New(idx)

	end := time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)
	st.UpsertStatic(domain.Topic{
		ID: "1", MarketID: 1,
		Question:    "Will Bitcoin reach $100k?",
		OutcomeType: domain.OutcomeBinary,
		Categories:  []string{"Crypto"},
		LastPrice:   "0.40",
		Volume:      decimal.RequireFromString("1000"),
	})
	st.UpsertStatic(domain.Topic{
		ID: "2", MarketID: 2,
		Question:    "Who wins the election?",
		OutcomeType: domain.OutcomeCategorical,
		Categories:  []string{"Politics"},
		EndDate:     &end,
		LastPrice:   "0.55",
		Volume:      decimal.RequireFromString("5000"),
	})

	engine := query.New(st, idx, 50, 200)
	metrics := obs.NewMetrics(logger)

	conn := staticConn{status: stream.Status{
		State:     stream.StateActive,
		StateName: stream.StateActive.String(),
		Connected: true,
	}}

	srv := NewServer(Config{Port: 0}, Handlers{
		Health: handler.NewHealthHandler(conn, metrics, st, logger),
		Topics: handler.NewTopicHandler(engine, logger),
	}, logger)

	return srv, st
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body struct {
		Status string `json:"status"`
		Topics int    `json:"topics"`
		Stream struct {
			Connected bool `json:"connected"`
		} `json:"stream"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, 2, body.Topics)
	require.True(t, body.Stream.Connected)
}

func TestServer_ListTopics(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/topics?category=Crypto", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Topics []domain.Topic `json:"topics"`
		Total  int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Total)
	require.Equal(t, int64(1), body.Topics[0].MarketID)
}

func TestServer_FilterTopics(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/topics/filter", `{
		"filters": {"outcome_types": ["categorical"]},
		"sort": {"field": "volume", "order": "desc"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Topics []domain.Topic `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Topics, 1)
	require.Equal(t, int64(2), body.Topics[0].MarketID)
}

func TestServer_FilterTopicsInvalid(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/topics/filter", `{
		"filters": {"price_range": {"min": "not-a-price"}}
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "invalid_filter", body.Error.Code)
}

func TestServer_SearchTopics(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/topics/search?q=bitcoin", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Topics []domain.Topic `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Topics, 1)
	require.Equal(t, int64(1), body.Topics[0].MarketID)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/topics/search?q=", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetTopic(t *testing.T) {
	srv, st := newTestServer(t)

	// Live price changes are visible on the next read.
	st.Apply(1, func(tp *domain.Topic) { tp.LastPrice = "0.45" })

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/topics/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var topic domain.Topic
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &topic))
	require.Equal(t, "0.45", topic.LastPrice)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/topics/999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	idx := search.NewIndex(2)
	st := store.New(idx)
	engine := query.New(st, idx, 50, 200)

	srv := NewServer(Config{Port: 0, CORSOrigins: []string{"https://app.example"}}, Handlers{
		Health: handler.NewHealthHandler(staticConn{}, obs.NewMetrics(logger), st, logger),
		Topics: handler.NewTopicHandler(engine, logger),
	}, logger)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/topics", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
