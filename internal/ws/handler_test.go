package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/brainclash/backend/internal/engine"
	"github.com/brainclash/backend/internal/protocol"
	"github.com/brainclash/backend/internal/questions"
	"github.com/brainclash/backend/internal/registry"
	"github.com/brainclash/backend/internal/room"
)

func testRegistry(t *testing.T) (*registry.Registry, *room.Room) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := room.Config{
		AnswerTimeout: 5 * time.Second,
		MaxHP:         100,
		HandSize:      3,
		Seed:          13,
	}
	bank := questions.NewMemoryBank(questions.DemoPool(), 13)
	reg := registry.New(ctx, zap.NewNop(), cfg, bank, nil)

	reply := make(chan *room.Room, 1)
	reg.Inbox() <- registry.CreateRoom{Match: registry.Match{
		RoomID:   "WS1",
		Creator:  engine.PlayerInfo{ID: "p1", Name: "Alice"},
		Opponent: engine.PlayerInfo{ID: "p2", Name: "Bey"},
	}, Reply: reply}
	select {
	case rm := <-reply:
		return reg, rm
	case <-time.After(time.Second):
		t.Fatalf("timed out creating room")
		return nil, nil
	}
}

func dial(t *testing.T, srvURL, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srvURL, "http") + "/?" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHandlerDeliversJoinSnapshot(t *testing.T) {
	reg, _ := testRegistry(t)
	srv := httptest.NewServer(Handler(reg, zap.NewNop()))
	defer srv.Close()

	conn := dial(t, srv.URL, "room=WS1&player=p1")
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg protocol.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != protocol.MsgStateUpdate || msg.State == nil {
		t.Fatalf("first message must be the join snapshot, got %+v", msg)
	}
	if msg.State.RoomID != "WS1" {
		t.Fatalf("wrong room in snapshot: %s", msg.State.RoomID)
	}
}

func TestHandlerRejectsUnknownRoom(t *testing.T) {
	reg, _ := testRegistry(t)
	srv := httptest.NewServer(Handler(reg, zap.NewNop()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?room=NOPE&player=p1"
	_, resp, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		t.Fatalf("dial to an unknown room must fail")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("want 404 handshake rejection, got %+v", resp)
	}
}

// Once the room shuts down it closes the client's outbox; the handler must
// tear the connection down promptly rather than idling out the read timeout.
func TestHandlerClosesConnectionOnRoomShutdown(t *testing.T) {
	reg, rm := testRegistry(t)
	srv := httptest.NewServer(Handler(reg, zap.NewNop()))
	defer srv.Close()

	conn := dial(t, srv.URL, "room=WS1&player=p1")
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Drain the join snapshot first so the session is fully attached.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if _, _, err := conn.Read(ctx); err != nil {
		cancel()
		t.Fatalf("read snapshot: %v", err)
	}
	cancel()

	start := time.Now()
	rm.Inbox() <- room.Shutdown{}

	readCtx, readCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer readCancel()
	for {
		if _, _, err := conn.Read(readCtx); err != nil {
			break
		}
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("connection lingered %v after room shutdown", elapsed)
	}
}
