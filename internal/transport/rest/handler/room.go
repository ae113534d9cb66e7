package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"quizparty/internal/game"
	"quizparty/internal/model"
	"quizparty/internal/service"
	"quizparty/internal/transport/rest/middleware"
)

type RoomHandler struct {
	roomSvc *service.RoomService
}

func NewRoomHandler(roomSvc *service.RoomService) *RoomHandler {
	return &RoomHandler{roomSvc: roomSvc}
}

type createRoomRequest struct {
	MaxStages int              `json:"maxStages"`
	Questions []model.Question `json:"questions"`
}

// Create handles POST /v1/rooms (host only).
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.roomSvc.CreateRoom(r.Context(), req.MaxStages, req.Questions)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// Get handles GET /v1/rooms/{code}: the full reconciliation snapshot.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	snap, err := h.roomSvc.Snapshot(code)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type joinRequest struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}

// Join handles POST /v1/rooms/{code}/join.
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	resp, err := h.roomSvc.JoinRoom(r.Context(), code, req.UserID, req.Nickname)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Leave handles POST /v1/rooms/{code}/leave (participant).
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	userID := middleware.GetUserID(r.Context())

	if err := h.roomSvc.LeaveRoom(r.Context(), code, userID); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// Start handles POST /v1/rooms/{code}/start (host participant).
func (h *RoomHandler) Start(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	userID := middleware.GetUserID(r.Context())

	if err := h.roomSvc.StartGame(r.Context(), code, userID); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// Ready handles POST /v1/rooms/{code}/ready (turn holder).
func (h *RoomHandler) Ready(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	userID := middleware.GetUserID(r.Context())

	if err := h.roomSvc.Ready(r.Context(), code, userID); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "answering"})
}

type submitRequest struct {
	Text string `json:"text"`
}

// SubmitAnswer handles POST /v1/rooms/{code}/answers. A rejection for
// wrong holder or phase is a 200 with accepted=false, not an error.
func (h *RoomHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	userID := middleware.GetUserID(r.Context())

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accepted, err := h.roomSvc.SubmitAnswer(r.Context(), code, userID, req.Text)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": accepted})
}

// Leaderboard handles GET /v1/rooms/{code}/leaderboard.
func (h *RoomHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	entries, err := h.roomSvc.Leaderboard(r.Context(), code, 20)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": entries})
}

// ConnectVoice handles POST /v1/rooms/{code}/voice/connect (participant).
func (h *RoomHandler) ConnectVoice(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	participantID := middleware.GetParticipantID(r.Context())

	if _, err := h.roomSvc.ConnectVoice(r.Context(), code, participantID); err != nil {
		if errors.Is(err, game.ErrNotFound) || errors.Is(err, game.ErrForbidden) {
			writeGameError(w, err)
			return
		}
		// Transport failure: retryable, not a game-state error.
		writeError(w, http.StatusBadGateway, "voice transport unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	case errors.Is(err, game.ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, game.ErrConflict):
		writeError(w, http.StatusConflict, "precondition not met")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
