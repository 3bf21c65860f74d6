package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-chatroom-notifier/internal/pipeline"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

const maxEventBytes = 1 << 20

// EventAPI accepts chatroom update events over HTTP, for triggers that
// cannot publish to Pub/Sub.
type EventAPI struct {
	Handler pipeline.EventHandler
	Logger  *slog.Logger
}

func NewEventAPI(handler pipeline.EventHandler, logger *slog.Logger) *EventAPI {
	return &EventAPI{
		Handler: handler,
		Logger:  logger.With("component", "EventAPI"),
	}
}

// HandleChatroomUpdate runs one invocation synchronously and replies once
// token cleanup has settled.
func (api *EventAPI) HandleChatroomUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	event, err := pipeline.DecodeChangeEvent(body)
	if err != nil {
		api.Logger.Warn("Rejected chatroom update", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "malformed change event")
		return
	}

	invocationID := uuid.NewString()
	if err := api.Handler.Handle(r.Context(), invocationID, event); err != nil {
		api.Logger.Error("Chatroom update failed",
			"chatroom_id", event.ChatroomID,
			"invocation_id", invocationID,
			"err", err,
		)
		status := http.StatusInternalServerError
		if errors.Is(err, dispatch.ErrSourceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		response.WriteJSONError(w, status, "update not processed")
		return
	}

	w.Header().Set("X-Invocation-Id", invocationID)
	w.WriteHeader(http.StatusNoContent)
}
