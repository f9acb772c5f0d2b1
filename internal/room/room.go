// Package room runs one battle session as a single-goroutine actor. Every
// mutation — card selection, answers, power-ups, deadline expiry — arrives on
// the inbox and is applied in order, so room state never races. Rooms are
// independent; many run in parallel.
package room

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/brainclash/backend/internal/engine"
	"github.com/brainclash/backend/internal/protocol"
	"github.com/brainclash/backend/internal/questions"
)

// replayCap bounds the per-room replay ring used for reconnect dedupe.
const replayCap = 256

type Config struct {
	AnswerTimeout time.Duration
	PowerUpChance float64
	// PowerUpCatalog defaults to engine.Catalog; tests narrow it.
	PowerUpCatalog []engine.PowerUpKind
	MaxHP          int
	HandSize       int
	ArchiveDelay   time.Duration
	// Seed for the room RNG; 0 means seed from the clock.
	Seed int64
}

// ResultSink receives the terminal result exactly once per room.
type ResultSink interface {
	Record(ctx context.Context, result engine.Result) error
}

// Envelope is one sequenced server message. Seq is monotonic per room across
// all recipients; a client may see gaps where events were addressed to the
// other player.
type Envelope struct {
	Seq uint64
	Msg protocol.ServerMessage
}

type Msg interface{ isRoomMsg() }

// Join attaches a transport connection for PlayerID. LastSeq is the last
// sequence number the client saw; anything newer addressed to it is replayed
// before live delivery resumes.
type Join struct {
	ClientID string
	PlayerID string
	LastSeq  uint64
	Outbox   chan Envelope
}

type Leave struct{ ClientID string }

// FromClient carries one decoded wire message from an attached client.
type FromClient struct {
	ClientID string
	PlayerID string
	Msg      protocol.ClientMessage
}

// GetView is a snapshot read, served atomically by the actor.
type GetView struct {
	PlayerID string
	Reply    chan protocol.RoomView
}

type Shutdown struct{}

type deadlineFired struct{ gen uint64 }

type archiveFired struct{}

func (Join) isRoomMsg()          {}
func (Leave) isRoomMsg()         {}
func (FromClient) isRoomMsg()    {}
func (GetView) isRoomMsg()       {}
func (Shutdown) isRoomMsg()      {}
func (deadlineFired) isRoomMsg() {}
func (archiveFired) isRoomMsg()  {}

type replayEntry struct {
	env      Envelope
	audience string // player id, or "" for both
}

type clientConn struct {
	playerID string
	outbox   chan Envelope
}

type Room struct {
	inbox   chan Msg
	state   engine.State
	seq     uint64
	clients map[string]clientConn
	replay  []replayEntry

	cfg  Config
	bank questions.Bank
	sink ResultSink
	rng  *rand.Rand
	log  *zap.Logger

	deadlineGen   uint64
	deadlineTimer *time.Timer
	archiveTimer  *time.Timer
	acked         map[string]bool
	reported      bool

	onClose func(roomID string)

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, log *zap.Logger, cfg Config, initial engine.State, bank questions.Bank, sink ResultSink, onClose func(roomID string)) *Room {
	ctx, cancel := context.WithCancel(parent)
	if len(cfg.PowerUpCatalog) == 0 {
		cfg.PowerUpCatalog = engine.Catalog
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := &Room{
		inbox:   make(chan Msg, 64),
		state:   initial,
		clients: make(map[string]clientConn),
		cfg:     cfg,
		bank:    bank,
		sink:    sink,
		rng:     rand.New(rand.NewSource(seed)),
		log:     log.With(zap.String("room", initial.RoomID)),
		acked:   make(map[string]bool),
		onClose: onClose,
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

// Inbox exposes the actor mailbox to the transport layer and tests.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) ID() string { return r.state.RoomID }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)

			case Leave:
				// Closing the outbox releases the transport's writer
				// goroutine, same as the slow-consumer drop.
				if c, ok := r.clients[msg.ClientID]; ok {
					close(c.outbox)
					delete(r.clients, msg.ClientID)
				}

			case FromClient:
				r.handleClient(msg)

			case GetView:
				msg.Reply <- protocol.ViewFor(r.state, msg.PlayerID)

			case deadlineFired:
				r.handleDeadline(msg.gen)

			case archiveFired:
				r.close()
				return

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	if r.state.Players[0].ID != msg.PlayerID && r.state.Players[1].ID != msg.PlayerID {
		// Not a participant; spectating is unsupported.
		msg.Outbox <- Envelope{Msg: protocol.ServerMessage{
			Type:   protocol.MsgIllegalAction,
			Reason: protocol.ReasonUnknownPlayer,
		}}
		close(msg.Outbox)
		return
	}
	r.clients[msg.ClientID] = clientConn{playerID: msg.PlayerID, outbox: msg.Outbox}

	// Replay first so one-shot events (an in-flight question, a resolved
	// answer) are not lost to a reload, then resync with a fresh snapshot.
	for _, e := range r.replay {
		if e.env.Seq > msg.LastSeq && (e.audience == "" || e.audience == msg.PlayerID) {
			r.deliver(msg.ClientID, e.env)
		}
	}
	r.sendTo(msg.PlayerID, protocol.ServerMessage{
		Type:  protocol.MsgStateUpdate,
		State: viewPtr(protocol.ViewFor(r.state, msg.PlayerID)),
	})

	events, ns, err := engine.Apply(r.state, engine.Command{Type: engine.CmdAttach, PlayerID: msg.PlayerID})
	if err != nil {
		r.log.Warn("attach rejected", zap.Error(err))
		return
	}
	r.state = ns
	r.dispatch(events)
	if engine.ContainsEvent(events, engine.EvtBattleStarted) {
		r.rollPowerUp()
		r.broadcastState()
	}
}

func (r *Room) handleClient(msg FromClient) {
	if r.state.Phase == engine.PhaseGameOver && msg.Msg.Type == protocol.MsgAckResult {
		r.acked[msg.PlayerID] = true
		if r.acked[r.state.Players[0].ID] && r.acked[r.state.Players[1].ID] {
			r.close()
		}
		return
	}

	switch msg.Msg.Type {
	case protocol.MsgCardSelected:
		r.handleSelectCard(msg)
	case protocol.MsgSubmitAnswer:
		r.handleSubmitAnswer(msg)
	case protocol.MsgUsePowerUp:
		r.handleUsePowerUp(msg)
	case protocol.MsgAckResult:
		// Ack outside the terminal phase is meaningless but harmless.
	default:
		r.reject(msg.ClientID, protocol.ReasonBadPayload)
	}
}

func (r *Room) handleSelectCard(msg FromClient) {
	replacement := r.drawReplacement(msg.PlayerID, msg.Msg.CardID)

	events, ns, err := engine.Apply(r.state, engine.Command{
		Type:        engine.CmdSelectCard,
		PlayerID:    msg.PlayerID,
		CardID:      msg.Msg.CardID,
		TargetID:    msg.Msg.TargetID,
		Replacement: replacement,
	})
	if err != nil {
		r.fail(msg.ClientID, err)
		return
	}
	r.state = ns

	deadline := time.Now().Add(r.cfg.AnswerTimeout)
	issued, ns2, err := engine.Apply(r.state, engine.Command{
		Type:       engine.CmdIssueChallenge,
		DeadlineAt: deadline,
	})
	if err != nil {
		r.fail(msg.ClientID, err)
		return
	}
	r.state = ns2
	r.armDeadline(deadline)

	r.dispatch(append(events, issued...))
	r.broadcastState()
}

func (r *Room) handleSubmitAnswer(msg FromClient) {
	events, ns, err := engine.Apply(r.state, engine.Command{
		Type:     engine.CmdSubmitAnswer,
		PlayerID: msg.PlayerID,
		CardID:   msg.Msg.CardID,
		Choice:   msg.Msg.Choice,
	})
	if err != nil {
		r.fail(msg.ClientID, err)
		return
	}
	r.state = ns
	r.disarmDeadline()
	r.finishResolution(events)
}

func (r *Room) handleUsePowerUp(msg FromClient) {
	kind := engine.PowerUpKind(msg.Msg.Kind)
	cmd := engine.Command{
		Type:     engine.CmdUsePowerUp,
		PlayerID: msg.PlayerID,
		Kind:     kind,
		Emote:    msg.Msg.Emote,
	}
	switch kind {
	case engine.PowerUpDiscardRedraw:
		hand, err := r.bank.Draw(r.ctx, r.cfg.HandSize, nil)
		if err != nil {
			r.log.Error("redraw failed", zap.Error(err))
			r.reject(msg.ClientID, protocol.ReasonPowerUpUnavailable)
			return
		}
		cmd.NewHand = hand
	case engine.PowerUpDamageRoulette:
		cmd.RouletteDamage = r.rng.Intn(15) + 1
	}

	events, ns, err := engine.Apply(r.state, cmd)
	if err != nil {
		r.fail(msg.ClientID, err)
		return
	}
	r.state = ns
	r.dispatch(events)
	if engine.ContainsEvent(events, engine.EvtGameCompleted) {
		r.disarmDeadline()
		r.onGameOver()
	}
	r.broadcastState()
}

func (r *Room) handleDeadline(gen uint64) {
	if gen != r.deadlineGen {
		return // stale fire from a superseded challenge
	}
	events, ns, err := engine.Apply(r.state, engine.Command{Type: engine.CmdForceMiss})
	if err != nil {
		// Answer won the race; the expiry is moot.
		if !errors.Is(err, engine.ErrAlreadyAnswered) && !errors.Is(err, engine.ErrWrongPhase) && !errors.Is(err, engine.ErrGameCompleted) {
			r.log.Warn("deadline expiry rejected", zap.Error(err))
		}
		return
	}
	r.state = ns
	r.finishResolution(events)
}

// finishResolution handles the shared tail of answer submission and forced
// miss: broadcast, report a terminal result, or start the next turn.
func (r *Room) finishResolution(events []engine.Event) {
	r.dispatch(events)
	if engine.ContainsEvent(events, engine.EvtGameCompleted) {
		r.onGameOver()
	} else if engine.ContainsEvent(events, engine.EvtTurnAdvanced) {
		r.rollPowerUp()
	}
	r.broadcastState()
}

// rollPowerUp makes the once-per-turn availability roll for the turn-holder.
func (r *Room) rollPowerUp() {
	if r.rng.Float64() >= r.cfg.PowerUpChance {
		return
	}
	kind := r.cfg.PowerUpCatalog[r.rng.Intn(len(r.cfg.PowerUpCatalog))]
	events, ns, err := engine.Apply(r.state, engine.Command{
		Type:     engine.CmdRollPowerUp,
		PlayerID: r.state.Turn,
		Granted:  &kind,
	})
	if err != nil {
		r.log.Error("power-up roll rejected", zap.Error(err))
		return
	}
	r.state = ns
	r.dispatch(events)
}

// drawReplacement draws the card that refills the hand after cardID is
// played. A dry bank shrinks the hand rather than blocking the turn.
func (r *Room) drawReplacement(playerID, cardID string) *questions.Card {
	var exclude []string
	for _, p := range r.state.Players {
		if p.ID != playerID {
			continue
		}
		for _, c := range p.Hand {
			if c.ID != cardID {
				exclude = append(exclude, c.Question.ID)
			}
		}
	}
	cards, err := r.bank.Draw(r.ctx, 1, exclude)
	if err != nil || len(cards) == 0 {
		if err != nil {
			r.log.Warn("replacement draw failed", zap.Error(err))
		}
		return nil
	}
	return &cards[0]
}

func (r *Room) onGameOver() {
	r.reportResult()
	if r.cfg.ArchiveDelay > 0 {
		r.archiveTimer = time.AfterFunc(r.cfg.ArchiveDelay, func() {
			select {
			case r.inbox <- archiveFired{}:
			case <-r.ctx.Done():
			}
		})
	}
}

func (r *Room) reportResult() {
	if r.reported || r.state.Result == nil || r.sink == nil {
		return
	}
	r.reported = true
	if err := r.sink.Record(r.ctx, *r.state.Result); err != nil {
		r.log.Error("result sink failed", zap.Error(err))
	}
}

// fail reports a rejected action to the offending client only, except
// invariant violations, which terminate the room.
func (r *Room) fail(clientID string, err error) {
	if errors.Is(err, engine.ErrInvariant) {
		r.log.Error("invariant violation, terminating room", zap.Error(err))
		r.sendTo("", protocol.ServerMessage{Type: protocol.MsgRoomTerminated, Error: "session integrity lost"})
		r.close()
		return
	}
	r.reject(clientID, protocol.ReasonFor(err))
}

// reject is per-client and ephemeral: illegal_action envelopes are sequenced
// but never enter the replay ring.
func (r *Room) reject(clientID, reason string) {
	if _, ok := r.clients[clientID]; !ok {
		return
	}
	r.seq++
	r.deliver(clientID, Envelope{Seq: r.seq, Msg: protocol.ServerMessage{
		Type:   protocol.MsgIllegalAction,
		Reason: reason,
	}})
}

func (r *Room) armDeadline(deadline time.Time) {
	r.deadlineGen++
	gen := r.deadlineGen
	if r.deadlineTimer != nil {
		r.deadlineTimer.Stop()
	}
	r.deadlineTimer = time.AfterFunc(time.Until(deadline), func() {
		select {
		case r.inbox <- deadlineFired{gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) disarmDeadline() {
	r.deadlineGen++
	if r.deadlineTimer != nil {
		r.deadlineTimer.Stop()
	}
}

func (r *Room) close() {
	r.reportResult()
	if r.onClose != nil {
		r.onClose(r.state.RoomID)
	}
	r.shutdown()
}

func (r *Room) shutdown() {
	if r.deadlineTimer != nil {
		r.deadlineTimer.Stop()
	}
	if r.archiveTimer != nil {
		r.archiveTimer.Stop()
	}
	for id, c := range r.clients {
		close(c.outbox)
		delete(r.clients, id)
	}
	r.cancel()
}

func viewPtr(v protocol.RoomView) *protocol.RoomView { return &v }
