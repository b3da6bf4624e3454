// Package handler exposes the request lifecycle over HTTP. Authentication is
// external; the gateway forwards the caller's identity in X-User-Id,
// X-User-Name and X-User-Role headers.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/harborline/be-procurement-requests/internal/domain"
	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
	"github.com/harborline/be-procurement-requests/internal/logger"
	"github.com/harborline/be-procurement-requests/internal/repository"
	"github.com/harborline/be-procurement-requests/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	service *service.RequestService
	log     *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(service *service.RequestService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		log:     log,
	}
}

// Register wires the handler's routes onto the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/requests", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListRequests(w, r)
		case http.MethodPost:
			h.SubmitRequest(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/requests/get", h.GetRequest)
	mux.HandleFunc("/api/v1/requests/flow", h.GetFlow)
	mux.HandleFunc("/api/v1/requests/totals", h.Totals)
	mux.HandleFunc("/api/v1/requests/approve", h.Approve)
	mux.HandleFunc("/api/v1/requests/reject", h.Reject)
	mux.HandleFunc("/api/v1/requests/query", h.Query)
	mux.HandleFunc("/api/v1/requests/resubmit", h.Resubmit)
	mux.HandleFunc("/api/v1/requests/split", h.Split)
	mux.HandleFunc("/api/v1/requests/complete-delivery", h.CompleteDelivery)

	mux.HandleFunc("/api/v1/requests/comments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListComments(w, r)
		case http.MethodPost:
			h.PostComment(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/comments/expand", h.ExpandComment)

	mux.HandleFunc("/api/v1/requests/read", h.MarkRead)
	mux.HandleFunc("/api/v1/requests/unread", h.Unread)
	mux.HandleFunc("/api/v1/badges", h.Badges)
}

// SubmitRequest handles new submissions.
func (h *HTTPHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Type           string            `json:"type"`
		Department     string            `json:"department"`
		Destination    string            `json:"destination"`
		VesselID       *string           `json:"vesselId"`
		ProjectManager *string           `json:"projectManager"`
		ApprovalPick   *string           `json:"approvalPick"`
		Priority       string            `json:"priority"`
		Tag            string            `json:"tag"`
		Items          []domain.LineItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	input, err := h.buildSubmitInput(body.Type, body.Department, body.Destination, body.Priority, body.Tag, body.ApprovalPick)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	input.VesselID = body.VesselID
	input.ProjectManager = body.ProjectManager
	input.Items = body.Items

	req, err := h.service.Submit(r.Context(), sess, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, req)
}

func (h *HTTPHandler) buildSubmitInput(rawType, rawDept, rawDest, rawPriority, rawTag string, rawPick *string) (service.SubmitRequestInput, error) {
	var input service.SubmitRequestInput
	var err error

	if input.Type, err = domain.ParseRequestType(rawType); err != nil {
		return input, err
	}
	if input.Department, err = domain.ParseDepartment(rawDept); err != nil {
		return input, err
	}
	if input.Destination, err = domain.ParseDestination(rawDest); err != nil {
		return input, err
	}

	input.Priority = domain.Priority(rawPriority)
	if rawPriority == "" {
		input.Priority = domain.PriorityNormal
	}
	if !input.Priority.IsValid() {
		return input, apperrors.InvalidInput("priority", "unknown priority "+rawPriority)
	}

	input.Tag = domain.Tag(rawTag)
	if rawTag == "" {
		input.Tag = domain.TagNone
	}
	if !input.Tag.IsValid() {
		return input, apperrors.InvalidInput("tag", "unknown tag "+rawTag)
	}

	if rawPick != nil {
		pick, err := domain.ParseRole(*rawPick)
		if err != nil {
			return input, err
		}
		input.ApprovalPick = &pick
	}
	return input, nil
}

// GetRequest returns one request with items, flow and history.
func (h *HTTPHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	req, err := h.service.GetRequest(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// GetFlow returns a request's waypoint list.
func (h *HTTPHandler) GetFlow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	flow, err := h.service.GetFlow(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"flow": flow})
}

// Totals returns a request's per-currency aggregate totals.
func (h *HTTPHandler) Totals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	totals, err := h.service.Totals(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"totals": totals})
}

// ListRequests returns one page of a bucket view.
func (h *HTTPHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := repository.ListFilter{
		Bucket:   repository.Bucket(q.Get("bucket")),
		Search:   q.Get("search"),
		ViewerID: sess.UserID,
	}
	if filter.Bucket == "" {
		filter.Bucket = repository.BucketPending
	}

	if raw := q.Get("department"); raw != "" {
		dept, err := domain.ParseDepartment(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		filter.Department = &dept
	}
	if raw := q.Get("type"); raw != "" {
		typ, err := domain.ParseRequestType(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		filter.RequestType = &typ
	}

	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	requests, total, err := h.service.ListBucket(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"requests": requests,
		"total":    total,
		"page":     filter.Page,
		"pageSize": filter.PageSize,
	})
}

// transitionBody is the shared body of approve/reject/query/split calls.
type transitionBody struct {
	ID      string `json:"id"`
	Reason  string `json:"reason"`
	Version int    `json:"version"`
}

func (h *HTTPHandler) decodeTransition(w http.ResponseWriter, r *http.Request) (domain.Session, transitionBody, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return domain.Session{}, transitionBody{}, false
	}
	sess, ok := h.session(w, r)
	if !ok {
		return domain.Session{}, transitionBody{}, false
	}
	var body transitionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return domain.Session{}, transitionBody{}, false
	}
	if body.ID == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return domain.Session{}, transitionBody{}, false
	}
	return sess, body, true
}

// Approve handles waypoint approvals.
func (h *HTTPHandler) Approve(w http.ResponseWriter, r *http.Request) {
	sess, body, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}
	req, err := h.service.Approve(r.Context(), sess, body.ID, body.Version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// Reject handles terminal rejections.
func (h *HTTPHandler) Reject(w http.ResponseWriter, r *http.Request) {
	sess, body, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}
	req, err := h.service.Reject(r.Context(), sess, body.ID, body.Reason, body.Version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// Query sends a request back to its requester.
func (h *HTTPHandler) Query(w http.ResponseWriter, r *http.Request) {
	sess, body, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}
	req, err := h.service.Query(r.Context(), sess, body.ID, body.Reason, body.Version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// Resubmit returns a queried request to its waypoint, optionally with
// corrected items.
func (h *HTTPHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		ID      string            `json:"id"`
		Items   []domain.LineItem `json:"items"`
		Version int               `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.ID == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	req, err := h.service.Resubmit(r.Context(), sess, body.ID, body.Items, body.Version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// Split extracts the petty-cash-eligible lines of a purchase order.
func (h *HTTPHandler) Split(w http.ResponseWriter, r *http.Request) {
	sess, body, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}
	origin, derived, err := h.service.Split(r.Context(), sess, body.ID, body.Version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"origin":  origin,
		"derived": derived,
	})
}

// CompleteDelivery confirms delivered quantities.
func (h *HTTPHandler) CompleteDelivery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		ID        string         `json:"id"`
		Delivered map[string]int `json:"delivered"`
		Version   int            `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.ID == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	req, err := h.service.CompleteDelivery(r.Context(), sess, body.ID, body.Delivered, body.Version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// ListComments returns one page of a request's discussion.
func (h *HTTPHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	thread, err := h.service.ListComments(r.Context(), id, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, thread)
}

// PostComment appends a comment or reply.
func (h *HTTPHandler) PostComment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		RequestID       string  `json:"requestId"`
		Text            string  `json:"text"`
		ParentCommentID *string `json:"parentCommentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.RequestID == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	comment, err := h.service.PostComment(r.Context(), sess, body.RequestID, body.Text, body.ParentCommentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, comment)
}

// ExpandComment returns all direct replies of a comment.
func (h *HTTPHandler) ExpandComment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Comment ID is required", http.StatusBadRequest)
		return
	}

	replies, err := h.service.ExpandComment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"replies": replies})
}

// MarkRead records that the caller has seen a request.
func (h *HTTPHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.ID == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	if err := h.service.MarkRead(r.Context(), sess, body.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// Unread reports whether a request has activity the caller has not seen.
func (h *HTTPHandler) Unread(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	unread, err := h.service.Unread(r.Context(), sess, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"unread": unread})
}

// Badges returns the caller's badge counts.
func (h *HTTPHandler) Badges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.Badges(sess))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// session reads the caller's identity from the gateway headers. A false
// return means the response has already been written.
func (h *HTTPHandler) session(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	sess, err := sessionFromHeaders(r)
	if err != nil {
		h.writeError(w, r, err)
		return domain.Session{}, false
	}
	return sess, true
}

func sessionFromHeaders(r *http.Request) (domain.Session, error) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		return domain.Session{}, apperrors.New(apperrors.ErrCodeUnauthorized, "missing X-User-Id header")
	}
	role, err := domain.ParseRole(r.Header.Get("X-User-Role"))
	if err != nil {
		return domain.Session{}, apperrors.New(apperrors.ErrCodeUnauthorized, "missing or unknown X-User-Role header")
	}
	return domain.Session{
		UserID:      userID,
		DisplayName: r.Header.Get("X-User-Name"),
		Role:        role,
	}, nil
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn().Err(err).Msg("failed to encode response")
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(apperrors.Code(err)),
		"error": err.Error(),
	})
}

func statusForError(err error) int {
	switch apperrors.Code(err) {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return http.StatusForbidden
	case apperrors.ErrCodeInvalidTransition, apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
