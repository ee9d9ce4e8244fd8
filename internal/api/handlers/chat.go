package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/bookmind/internal/api"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/cloo-solutions/bookmind/internal/telemetry"
)

const maxInputRunes = 2000

type ChatService interface {
	Search(ctx context.Context, input string, state service.ConversationState) (*service.ChatResponse, error)
	ContinueSearch(ctx context.Context, state service.ConversationState) (*service.ChatResponse, error)
	ApplyFilter(ctx context.Context, update service.SearchFilters, state service.ConversationState) (*service.ChatResponse, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Input string                     `json:"input"`
	State *service.ConversationState `json:"state,omitempty"`
}

type ContinueRequest struct {
	State *service.ConversationState `json:"state"`
}

type FilterRequest struct {
	Filters service.SearchFilters      `json:"filters"`
	State   *service.ConversationState `json:"state"`
}

// stateOrNew returns a usable state; clients may omit it on the first turn.
func stateOrNew(s *service.ConversationState) service.ConversationState {
	if s == nil {
		return service.NewConversationState()
	}
	out := s.Clone()
	if out.SeenBookmarkIDs == nil {
		out.SeenBookmarkIDs = []string{}
	}
	if out.ShortMemory == nil {
		out.ShortMemory = []service.Turn{}
	}
	return out
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := strings.TrimSpace(req.Input)
	if input == "" {
		api.Error(w, http.StatusBadRequest, "input is required")
		return
	}
	if utf8.RuneCountInString(input) > maxInputRunes {
		api.Error(w, http.StatusBadRequest, "input is too long")
		return
	}

	resp, err := h.svc.Search(r.Context(), input, stateOrNew(req.State))
	if err != nil {
		telemetry.CaptureError(r.Context(), err)
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chatToResponse(resp))
}

func (h *ChatHandler) Continue(w http.ResponseWriter, r *http.Request) {
	var req ContinueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state := stateOrNew(req.State)
	if state.LastQuery == "" {
		api.Error(w, http.StatusBadRequest, "nothing to continue: state has no previous query")
		return
	}

	resp, err := h.svc.ContinueSearch(r.Context(), state)
	if err != nil {
		telemetry.CaptureError(r.Context(), err)
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chatToResponse(resp))
}

func (h *ChatHandler) Filter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Filters.TimeRangeDays < 0 {
		api.Error(w, http.StatusBadRequest, "time_range_days must not be negative")
		return
	}

	resp, err := h.svc.ApplyFilter(r.Context(), req.Filters, stateOrNew(req.State))
	if err != nil {
		telemetry.CaptureError(r.Context(), err)
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chatToResponse(resp))
}
