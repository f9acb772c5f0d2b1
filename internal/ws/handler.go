// Package ws attaches WebSocket connections to room actors. The handler is a
// thin shim: decode, forward to the room inbox, and pump sequenced envelopes
// back out. All game rules live behind the inbox.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brainclash/backend/internal/protocol"
	"github.com/brainclash/backend/internal/registry"
	"github.com/brainclash/backend/internal/room"
)

const (
	writeTimeout = 3 * time.Second
	// Reads idle out well past the answer deadline so a thinking player is
	// not disconnected between actions.
	readTimeout = 5 * time.Minute
)

func Handler(reg *registry.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		playerID := r.URL.Query().Get("player")
		if roomID == "" || playerID == "" {
			http.Error(w, "missing room or player", http.StatusBadRequest)
			return
		}
		lastSeq, _ := strconv.ParseUint(r.URL.Query().Get("last_seq"), 10, 64)

		reply := make(chan *room.Room, 1)
		reg.Inbox() <- registry.GetRoom{RoomID: roomID, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		out := make(chan room.Envelope, 16)

		rm.Inbox() <- room.Join{
			ClientID: clientID,
			PlayerID: playerID,
			LastSeq:  lastSeq,
			Outbox:   out,
		}
		defer func() { rm.Inbox() <- room.Leave{ClientID: clientID} }()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for env := range out {
				payload, err := json.Marshal(env.Msg)
				if err != nil {
					log.Error("marshal envelope", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			// Outbox closed: the room dropped us or shut down.
			writeCancel()
		}()

		// Reads share the writer's context: when the room closes the outbox
		// (drop, leave or shutdown) the writer cancels it and the read
		// unblocks immediately instead of idling out the full timeout.
		for {
			ctx, cancel := context.WithTimeout(writeCtx, readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				// Room state is untouched by transport loss; the client
				// reconnects and resumes from its last seen sequence.
				return
			}

			var cm protocol.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				resp, _ := json.Marshal(protocol.ServerMessage{
					Type:   protocol.MsgIllegalAction,
					Reason: protocol.ReasonBadPayload,
				})
				_ = conn.Write(writeCtx, websocket.MessageText, resp)
				continue
			}
			if cm.Type == protocol.MsgJoinRoom {
				continue // already attached via the query parameters
			}

			rm.Inbox() <- room.FromClient{
				ClientID: clientID,
				PlayerID: playerID,
				Msg:      cm,
			}
		}
	}
}
