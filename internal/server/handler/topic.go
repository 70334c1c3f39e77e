package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cbl315/opinion-builder-tools/internal/domain"
	"github.com/cbl315/opinion-builder-tools/internal/query"
)

// TopicQueries defines what the topic handler needs from the query engine.
// Declared locally so the handler package does not depend on the concrete
// implementation. All methods serve from memory and never block on I/O.
type TopicQueries interface {
	List(filters domain.Filters, sort domain.Sort, page domain.Page) (query.Result, error)
	Search(q string, fuzzy bool, page domain.Page) (query.Result, error)
	GetByID(id string) (domain.Topic, error)
}

// TopicHandler serves topic listing, filtering, search, and lookup endpoints.
type TopicHandler struct {
	queries TopicQueries
	logger  *slog.Logger
}

// NewTopicHandler creates a TopicHandler with the given query engine and logger.
func NewTopicHandler(queries TopicQueries, logger *slog.Logger) *TopicHandler {
	return &TopicHandler{
		queries: queries,
		logger:  logger,
	}
}

// ListTopics returns topics with optional query-string filters.
// GET /api/v1/topics?category=Crypto&outcome_type=binary&sort_by=volume&order=desc&limit=50&offset=0
func (h *TopicHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filters domain.Filters
	if v := q.Get("category"); v != "" {
		filters.Categories = strings.Split(v, ",")
	}
	if v := q.Get("outcome_type"); v != "" {
		for _, s := range strings.Split(v, ",") {
			filters.OutcomeTypes = append(filters.OutcomeTypes, domain.OutcomeType(s))
		}
	}
	if v := q.Get("min_volume"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", "min_volume must be a number")
			return
		}
		filters.MinVolume = &f
	}

	res, err := h.queries.List(filters, parseSort(r), parsePage(r))
	if err != nil {
		h.writeQueryError(w, r, err, "list topics failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// filterRequest is the body of the POST filter endpoint: full structured
// filters plus sort and pagination.
type filterRequest struct {
	Filters domain.Filters `json:"filters"`
	Sort    domain.Sort    `json:"sort"`
	Page    domain.Page    `json:"page"`
}

// FilterTopics evaluates a structured filter request.
// POST /api/v1/topics/filter
func (h *TopicHandler) FilterTopics(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	res, err := h.queries.List(req.Filters, req.Sort, req.Page)
	if err != nil {
		h.writeQueryError(w, r, err, "filter topics failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// SearchTopics runs a text search over questions, descriptions, and
// categories.
// GET /api/v1/topics/search?q=bitcoin&fuzzy=true&limit=50
func (h *TopicHandler) SearchTopics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	fuzzy := r.URL.Query().Get("fuzzy") == "true"

	res, err := h.queries.Search(q, fuzzy, parsePage(r))
	if err != nil {
		h.writeQueryError(w, r, err, "search topics failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GetTopic returns a single topic by id or slug.
// GET /api/v1/topics/{id}
func (h *TopicHandler) GetTopic(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "missing topic id")
		return
	}

	topic, err := h.queries.GetByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "topic not found")
			return
		}
		h.writeQueryError(w, r, err, "get topic failed")
		return
	}

	writeJSON(w, http.StatusOK, topic)
}

func (h *TopicHandler) writeQueryError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, domain.ErrInvalidFilter) {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: "+msg,
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "internal", msg)
}
