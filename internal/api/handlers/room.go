package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/kgruber/quizbowl-buzzer/internal/domain"
	"github.com/kgruber/quizbowl-buzzer/internal/game"
)

type RoomHandler struct {
	registry  *game.Registry
	publicURL string
}

func NewRoomHandler(registry *game.Registry, publicURL string) *RoomHandler {
	return &RoomHandler{
		registry:  registry,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Get returns a read-only snapshot of a room, so a join page can show the
// room name and teams before the player opens a websocket.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.registry.Get(roomCode(r))
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room.Snapshot())
}

// QR renders a PNG QR code pointing at the room's join URL.
func (h *RoomHandler) QR(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	if _, err := h.registry.Get(code); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	joinURL := fmt.Sprintf("%s/join/%s", h.publicURL, code)
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		log.Error().Err(err).Str("room", code).Msg("failed to encode qr code")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func roomCode(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
}
