package http

import (
	"encoding/json"
	"log"
	"net/http"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// APIHandler exposes the companion request/response endpoints. Caller
// identity arrives in the body (POST) or query (GET); authentication itself
// is supplied upstream and out of scope here.
type APIHandler struct {
	service *app.LiveService
}

func NewAPIHandler(service *app.LiveService) *APIHandler {
	return &APIHandler{service: service}
}

func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /live", h.createSession)
	mux.HandleFunc("GET /live/active", h.activeSession)
	mux.HandleFunc("GET /live/{id}", h.room)
	mux.HandleFunc("POST /live/{id}/join", h.join)
	mux.HandleFunc("POST /live/{id}/leave", h.leave)
	mux.HandleFunc("POST /live/{id}/cancel", h.cancel)
	mux.HandleFunc("POST /live/{id}/start", h.start)
	mux.HandleFunc("POST /live/{id}/advance", h.advance)
	mux.HandleFunc("GET /live/{id}/state", h.gameState)
	mux.HandleFunc("POST /live/{id}/answers", h.submitAnswer)
}

type createSessionRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	CategoryID  string            `json:"categoryId"`
	AdminID     string            `json:"adminId"`
	Questions   []domain.Question `json:"questions"`
}

type userRequest struct {
	UserID string `json:"userId"`
}

type answerRequest struct {
	UserID   string          `json:"userId"`
	Value    json.RawMessage `json:"value"`
	DontKnow bool            `json:"dontKnow"`
}

func (h *APIHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	session, err := h.service.CreateSession(r.Context(), app.CreateSessionRequest{
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		AdminID:     req.AdminID,
		Questions:   req.Questions,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *APIHandler) activeSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.service.ActiveSession()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) room(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Room(r.PathValue("id"), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) join(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUser(w, r)
	if !ok {
		return
	}
	session, err := h.service.JoinSession(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) leave(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUser(w, r)
	if !ok {
		return
	}
	session, err := h.service.LeaveSession(r.PathValue("id"), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) cancel(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUser(w, r)
	if !ok {
		return
	}
	if err := h.service.CancelSession(r.PathValue("id"), req.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) start(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUser(w, r)
	if !ok {
		return
	}
	session, err := h.service.StartSession(r.PathValue("id"), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) advance(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUser(w, r)
	if !ok {
		return
	}
	session, err := h.service.AdvanceQuestion(r.PathValue("id"), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) gameState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.GameState(r.PathValue("id"), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *APIHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	answer, err := h.service.SubmitAnswer(r.PathValue("id"), req.UserID, domain.Submission{
		Value:    req.Value,
		DontKnow: req.DontKnow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func decodeUser(w http.ResponseWriter, r *http.Request) (userRequest, bool) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict, domain.KindCapacity:
		status = http.StatusConflict
	case domain.KindForbidden:
		status = http.StatusForbidden
	case domain.KindInvalidState:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, domain.ErrorPayload{Message: err.Error()})
}
