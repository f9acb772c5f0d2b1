package client

import (
	"sync"
	"time"

	"github.com/brainclash/backend/internal/protocol"
)

// Projection is the client-local view of a room: the last authoritative
// snapshot plus short-lived speculation (an answer in flight, a power-up just
// used). Speculation never survives the next authoritative update.
type Projection struct {
	mu            sync.RWMutex
	authoritative *protocol.RoomView

	predictedAnswerCard string
	predictedPowerUp    bool
}

func NewProjection() *Projection {
	return &Projection{}
}

// ApplyAuthoritative replaces the view and discards all speculation,
// confirmed or not.
func (p *Projection) ApplyAuthoritative(v *protocol.RoomView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authoritative = v
	p.predictedAnswerCard = ""
	p.predictedPowerUp = false
}

func (p *Projection) PredictAnswered(cardID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.predictedAnswerCard = cardID
}

func (p *Projection) PredictPowerUpUsed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.predictedPowerUp = true
}

// View returns a copy of the current projection with speculation folded in.
// The zero RoomView means no snapshot has arrived yet.
func (p *Projection) View() protocol.RoomView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.authoritative == nil {
		return protocol.RoomView{}
	}

	v := *p.authoritative
	if ch := v.Challenge; ch != nil && p.predictedAnswerCard == ch.CardID {
		cp := *ch
		cp.Answered = true
		v.Challenge = &cp
	}
	if p.predictedPowerUp {
		players := make([]protocol.PlayerView, len(v.Players))
		copy(players, v.Players)
		for i := range players {
			players[i].Available = ""
		}
		v.Players = players
	}
	return v
}

// RemainingAnswerTime computes the countdown from the server-issued absolute
// deadline. The client never persists its own copy of the deadline.
func (p *Projection) RemainingAnswerTime(now time.Time) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.authoritative == nil || p.authoritative.Challenge == nil {
		return 0
	}
	d := p.authoritative.Challenge.DeadlineAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
