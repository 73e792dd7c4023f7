package book

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookcatalogue/internal/httpx"
)

// MaxTake caps the number of results a single search may ask for.
const MaxTake = 100

// bookDTO is the public shape of a book; it maps 1:1 onto Book.
type bookDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	Genre       string    `json:"genre"`
	PublishDate time.Time `json:"publishDate"`
	Publisher   string    `json:"publisher"`
}

func toDTO(b Book) bookDTO { return bookDTO(b) }

func (d bookDTO) toBook() Book { return Book(d) }

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// Register mounts the book routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/book/search", h.Search)
	mux.HandleFunc("GET /api/book/{id}", h.Get)
	mux.HandleFunc("POST /api/book", h.Create)
	mux.HandleFunc("PUT /api/book/{id}", h.Update)
	mux.HandleFunc("DELETE /api/book/{id}", h.Delete)
}

// Search handles GET /api/book/search
// @Summary Search books
// @Description Search by title term, genre and publish date range
// @Tags books
// @Produce json
// @Param term query string false "Title search term"
// @Param genre query string false "Exact genre"
// @Param startDate query string false "Earliest publish date (RFC 3339 or YYYY-MM-DD)"
// @Param endDate query string false "Latest publish date (RFC 3339 or YYYY-MM-DD)"
// @Param take query int false "Maximum results" default(10)
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /api/book/search [get]
func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var details []httpx.ErrorDetail
	startDate, err := parseDate(query.Get("startDate"))
	if err != nil {
		details = append(details, httpx.ErrorDetail{Field: "startDate", Message: "startDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp"})
	}
	endDate, err := parseDate(query.Get("endDate"))
	if err != nil {
		details = append(details, httpx.ErrorDetail{Field: "endDate", Message: "endDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp"})
	}
	take, err := parseTake(query.Get("take"))
	if err != nil {
		details = append(details, httpx.ErrorDetail{Field: "take", Message: "take must be an integer"})
	}
	if len(details) > 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid search parameters", details)
		return
	}

	criteria := NewCriteria(query.Get("term"), query.Get("genre"), startDate, endDate, take)
	books, err := h.service.Search(r.Context(), criteria)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]bookDTO, len(books))
	for i, b := range books {
		out[i] = toDTO(b)
	}
	httpx.JSONSuccess(w, r, out, map[string]any{
		"count": len(out),
		"take":  criteria.Limit(),
	})
}

// Get handles GET /api/book/{id}
// @Summary Get book
// @Tags books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /api/book/{id} [get]
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, toDTO(b), nil)
}

// Create handles POST /api/book
// @Summary Create book
// @Tags books
// @Accept json
// @Produce json
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /api/book [post]
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in bookDTO
	if !decodeBody(w, r, &in) {
		return
	}

	created, err := h.service.Create(r.Context(), in.toBook())
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/book/"+created.ID)
	httpx.JSONCreated(w, r, toDTO(created))
}

// Update handles PUT /api/book/{id}
// @Summary Replace book
// @Description The body must carry the complete record; its id, when set, must match the path.
// @Tags books
// @Accept json
// @Param id path string true "Book ID"
// @Success 204
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /api/book/{id} [put]
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var in bookDTO
	if !decodeBody(w, r, &in) {
		return
	}
	if in.ID == "" {
		in.ID = id
	}
	if in.ID != id {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid book", []httpx.ErrorDetail{
			{Field: "id", Message: "id does not match the request path"},
		})
		return
	}

	if _, err := h.service.Update(r.Context(), in.toBook()); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

// Delete handles DELETE /api/book/{id}
// @Summary Delete book
// @Tags books
// @Param id path string true "Book ID"
// @Success 204
// @Failure 404 {object} httpx.ErrorResponse
// @Router /api/book/{id} [delete]
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.JSONError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
			return false
		}
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", nil)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		details := make([]httpx.ErrorDetail, len(verr.Fields))
		for i, f := range verr.Fields {
			details[i] = httpx.ErrorDetail{Field: f.Field, Message: f.Message}
		}
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid book", details)
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
	default:
		slog.ErrorContext(r.Context(), "book request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", httpx.RequestIDFrom(r),
			"error", err,
		)
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate accepts RFC 3339 or a bare calendar date. Values without a zone
// are read as UTC. An empty string is an absent date.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			t = t.UTC()
			return &t, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func parseTake(s string) (int, error) {
	if s == "" {
		return DefaultLimit, nil
	}
	take, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if take <= 0 {
		return DefaultLimit, nil
	}
	if take > MaxTake {
		take = MaxTake
	}
	return take, nil
}
