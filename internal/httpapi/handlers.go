package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/brainclash/backend/internal/engine"
	"github.com/brainclash/backend/internal/protocol"
	"github.com/brainclash/backend/internal/registry"
	"github.com/brainclash/backend/internal/room"
)

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type createRoomRequest struct {
	RoomID  string `json:"room_id,omitempty"`
	Players []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"players"`
}

// CreateRoom accepts a formed match from the matchmaking collaborator. The
// first listed player is the match creator and holds the first turn.
func CreateRoom(reg *registry.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if len(req.Players) != 2 || req.Players[0].ID == "" || req.Players[1].ID == "" ||
			req.Players[0].ID == req.Players[1].ID {
			http.Error(w, "exactly two distinct players required", http.StatusBadRequest)
			return
		}

		roomID := req.RoomID
		for roomID == "" {
			code, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate room id", http.StatusInternalServerError)
				return
			}
			reply := make(chan *room.Room, 1)
			reg.Inbox() <- registry.GetRoom{RoomID: code, Reply: reply}
			if <-reply == nil {
				roomID = code
			}
		}

		reply := make(chan *room.Room, 1)
		reg.Inbox() <- registry.CreateRoom{
			Match: registry.Match{
				RoomID:   roomID,
				Creator:  engine.PlayerInfo{ID: req.Players[0].ID, Name: req.Players[0].Name},
				Opponent: engine.PlayerInfo{ID: req.Players[1].ID, Name: req.Players[1].Name},
			},
			Reply: reply,
		}
		if <-reply == nil {
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}
		log.Info("room created", zap.String("room", roomID))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			RoomID string `json:"room_id"`
		}{RoomID: roomID})
	}
}

// RoomState is the restoration endpoint. A missing room is a normal outcome
// (completed and archived, or a bad id), reported as 404, never as a 5xx.
func RoomState(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		reply := make(chan *room.Room, 1)
		reg.Inbox() <- registry.GetRoom{RoomID: roomID, Reply: reply}
		rm := <-reply
		if rm == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(struct {
				Error string `json:"error"`
			}{Error: "room not found"})
			return
		}

		viewReply := make(chan protocol.RoomView, 1)
		rm.Inbox() <- room.GetView{PlayerID: r.URL.Query().Get("player"), Reply: viewReply}

		// A room racing its own teardown may never answer; treat that like
		// an already-archived room.
		select {
		case view := <-viewReply:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(view)
		case <-time.After(2 * time.Second):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(struct {
				Error string `json:"error"`
			}{Error: "room not found"})
		}
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
