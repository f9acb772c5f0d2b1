// Package client is the thin client-side counterpart of the battle server: a
// reconnecting transport with a bounded retry policy and a projection that
// renders speculative local effects until the next authoritative update
// overwrites them.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/brainclash/backend/internal/protocol"
)

type Options struct {
	// BaseURL is the server's HTTP origin, e.g. "http://localhost:8080".
	BaseURL  string
	RoomID   string
	PlayerID string
	Logger   *zap.Logger
	// MaxRetries bounds each reconnect attempt run. Zero means the default
	// of 3.
	MaxRetries uint64
}

// ErrNotConnected is returned by the action methods before the first connect
// succeeds or after Run has given up reconnecting.
var ErrNotConnected = errors.New("client: not connected")

type Client struct {
	opts    Options
	httpc   *http.Client
	proj    *Projection
	lastSeq uint64
	updates chan protocol.ServerMessage
	log     *zap.Logger

	// connMu guards conn: the reconnect loop inside Run replaces it while
	// the action methods read it from the caller's goroutine.
	connMu sync.Mutex
	conn   *websocket.Conn
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

func (c *Client) getConn() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func New(opts Options) *Client {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		opts:    opts,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		proj:    NewProjection(),
		updates: make(chan protocol.ServerMessage, 32),
		log:     log,
	}
}

// Projection exposes the client's local view of the room.
func (c *Client) Projection() *Projection { return c.proj }

// Updates delivers every server message after it has been folded into the
// projection. The channel closes when Run returns.
func (c *Client) Updates() <-chan protocol.ServerMessage { return c.updates }

// Run connects, then reads until ctx ends or reconnection is exhausted. Every
// transport loss triggers the bounded-retry policy: reconnect with
// exponential backoff, fetch a fresh snapshot, resume from the last seen
// sequence number.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.updates)

	if err := c.connect(ctx); err != nil {
		return err
	}
	for {
		_, data, err := c.getConn().Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("connection lost, reconnecting", zap.Error(err))
			if err := c.connect(ctx); err != nil {
				return fmt.Errorf("reconnect: %w", err)
			}
			continue
		}

		var msg protocol.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("bad server message", zap.Error(err))
			continue
		}
		if msg.Seq > c.lastSeq {
			c.lastSeq = msg.Seq
		}
		if msg.Type == protocol.MsgStateUpdate && msg.State != nil {
			// The authoritative state always wins over local prediction.
			c.proj.ApplyAuthoritative(msg.State)
		}

		select {
		case c.updates <- msg:
		default:
			c.log.Warn("update consumer too slow, dropping message",
				zap.String("type", msg.Type))
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.opts.MaxRetries), ctx)

	return backoff.Retry(func() error {
		conn, _, err := websocket.Dial(ctx, c.wsURL(), nil)
		if err != nil {
			return err
		}
		c.setConn(conn)

		// Re-attach and resync before trusting any local state.
		view, err := c.FetchSnapshot(ctx)
		if err != nil {
			conn.Close(websocket.StatusInternalError, "snapshot failed")
			c.setConn(nil)
			return err
		}
		if view != nil {
			c.proj.ApplyAuthoritative(view)
		}
		return nil
	}, policy)
}

func (c *Client) wsURL() string {
	scheme := "ws"
	if strings.HasPrefix(c.opts.BaseURL, "https") {
		scheme = "wss"
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.opts.BaseURL, "https://"), "http://")
	return fmt.Sprintf("%s://%s/ws?room=%s&player=%s&last_seq=%d",
		scheme, host,
		url.QueryEscape(c.opts.RoomID), url.QueryEscape(c.opts.PlayerID), c.lastSeq)
}

// FetchSnapshot reads the restoration endpoint. A 404 returns (nil, nil):
// no session for the id is a normal outcome, not a failure.
func (c *Client) FetchSnapshot(ctx context.Context) (*protocol.RoomView, error) {
	u := fmt.Sprintf("%s/rooms/%s/state?player=%s",
		c.opts.BaseURL, url.PathEscape(c.opts.RoomID), url.QueryEscape(c.opts.PlayerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot: unexpected status %d", resp.StatusCode)
	}
	var view protocol.RoomView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) send(ctx context.Context, msg protocol.ClientMessage) error {
	conn := c.getConn()
	if conn == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

func (c *Client) SelectCard(ctx context.Context, cardID, targetID string) error {
	return c.send(ctx, protocol.ClientMessage{
		Type:     protocol.MsgCardSelected,
		CardID:   cardID,
		TargetID: targetID,
	})
}

// SubmitAnswer sends the answer and marks the challenge answered in the local
// projection so the UI can react immediately. The next state_update confirms
// or corrects it.
func (c *Client) SubmitAnswer(ctx context.Context, cardID string, choice int) error {
	c.proj.PredictAnswered(cardID)
	return c.send(ctx, protocol.ClientMessage{
		Type:   protocol.MsgSubmitAnswer,
		CardID: cardID,
		Choice: choice,
	})
}

func (c *Client) UsePowerUp(ctx context.Context, kind, emote string) error {
	c.proj.PredictPowerUpUsed()
	return c.send(ctx, protocol.ClientMessage{
		Type:  protocol.MsgUsePowerUp,
		Kind:  kind,
		Emote: emote,
	})
}

func (c *Client) AckResult(ctx context.Context) error {
	return c.send(ctx, protocol.ClientMessage{Type: protocol.MsgAckResult})
}
