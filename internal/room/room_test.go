package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/brainclash/backend/internal/engine"
	"github.com/brainclash/backend/internal/protocol"
	"github.com/brainclash/backend/internal/questions"
)

// testCard builds a deterministic card whose correct choice is index 1.
func testCard(id string, damage int) questions.Card {
	return questions.Card{
		ID: id,
		Question: questions.Question{
			ID:      "q-" + id,
			Text:    "question " + id,
			Choices: []string{"a", "b", "c", "d"},
			Answer:  1,
			Level:   questions.LevelAnalyzing,
		},
		Damage: damage,
	}
}

func testPool() []questions.Question {
	var pool []questions.Question
	for _, id := range []string{"x1", "x2", "x3", "x4", "x5", "x6", "x7", "x8"} {
		pool = append(pool, questions.Question{
			ID:      "q-" + id,
			Text:    "question " + id,
			Choices: []string{"a", "b", "c", "d"},
			Answer:  1,
			Level:   questions.LevelApplying,
		})
	}
	return pool
}

type captureSink struct {
	mu      sync.Mutex
	results []engine.Result
}

func (c *captureSink) Record(_ context.Context, r engine.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

type fixture struct {
	room   *Room
	sink   *captureSink
	closed chan string
	cancel context.CancelFunc
}

// startRoom spins up a room with deterministic hands: p1 holds a1,a2 and p2
// holds b1, all 20 damage.
func startRoom(t *testing.T, cfg Config, mutate func(*engine.State)) *fixture {
	t.Helper()
	if cfg.AnswerTimeout == 0 {
		cfg.AnswerTimeout = 5 * time.Second
	}
	if cfg.HandSize == 0 {
		cfg.HandSize = 3
	}
	cfg.Seed = 42

	state := engine.NewState("R1",
		engine.PlayerInfo{ID: "p1", Name: "Alice"},
		engine.PlayerInfo{ID: "p2", Name: "Bey"},
		100,
		[2][]questions.Card{
			{testCard("a1", 20), testCard("a2", 20)},
			{testCard("b1", 20)},
		})
	if mutate != nil {
		mutate(&state)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sink := &captureSink{}
	closed := make(chan string, 1)
	bank := questions.NewMemoryBank(testPool(), 1)

	rm := New(ctx, zap.NewNop(), cfg, state, bank, sink, func(id string) {
		select {
		case closed <- id:
		default:
		}
	})
	t.Cleanup(cancel)
	return &fixture{room: rm, sink: sink, closed: closed, cancel: cancel}
}

func join(t *testing.T, f *fixture, clientID, playerID string) chan Envelope {
	t.Helper()
	out := make(chan Envelope, 64)
	f.room.Inbox() <- Join{ClientID: clientID, PlayerID: playerID, Outbox: out}
	return out
}

// waitFor drains the outbox until a message of the wanted type arrives.
func waitFor(t *testing.T, ch <-chan Envelope, msgType string) protocol.ServerMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", msgType)
			}
			if env.Msg.Type == msgType {
				return env.Msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func expectNo(t *testing.T, ch <-chan Envelope, msgType string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				return
			}
			if env.Msg.Type == msgType {
				t.Fatalf("unexpected %s: %+v", msgType, env.Msg)
			}
		case <-deadline:
			return
		}
	}
}

func getView(t *testing.T, f *fixture, playerID string) protocol.RoomView {
	t.Helper()
	reply := make(chan protocol.RoomView, 1)
	f.room.Inbox() <- GetView{PlayerID: playerID, Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return protocol.RoomView{}
	}
}

func TestRoom_BattleStartsWhenBothJoin(t *testing.T) {
	f := startRoom(t, Config{}, nil)

	out1 := join(t, f, "c1", "p1")
	first := waitFor(t, out1, protocol.MsgStateUpdate)
	if first.State.Phase != string(engine.PhaseSetup) {
		t.Fatalf("before both join: want setup, got %s", first.State.Phase)
	}

	out2 := join(t, f, "c2", "p2")
	waitFor(t, out2, protocol.MsgStateUpdate)

	started := waitFor(t, out1, protocol.MsgStateUpdate)
	if started.State.Phase != string(engine.PhaseCardSelection) {
		t.Fatalf("after both join: want cardSelection, got %s", started.State.Phase)
	}
	if started.State.Turn != "p1" {
		t.Fatalf("creator should hold the first turn, got %s", started.State.Turn)
	}
	if len(started.State.Players[0].Hand) != 2 {
		t.Fatalf("p1 should see own hand, got %+v", started.State.Players[0])
	}
	if started.State.Players[1].Hand != nil {
		t.Fatalf("p1 must not see p2's hand")
	}
}

func TestRoom_QuestionGoesToTargetOnly(t *testing.T) {
	f := startRoom(t, Config{}, nil)
	out1 := join(t, f, "c1", "p1")
	out2 := join(t, f, "c2", "p2")
	waitFor(t, out2, protocol.MsgStateUpdate)

	f.room.Inbox() <- FromClient{ClientID: "c1", PlayerID: "p1", Msg: protocol.ClientMessage{
		Type: protocol.MsgCardSelected, CardID: "a1", TargetID: "p2",
	}}

	toTarget := waitFor(t, out2, protocol.MsgQuestionChallenge)
	if toTarget.Question == nil {
		t.Fatalf("target must receive the question body")
	}
	if toTarget.DeadlineAt == nil || toTarget.DeadlineAt.IsZero() {
		t.Fatalf("challenge must carry the server-issued deadline")
	}

	toChallenger := waitFor(t, out1, protocol.MsgQuestionChallenge)
	if toChallenger.Question != nil {
		t.Fatalf("challenger must only receive metadata, got question body")
	}
	if toChallenger.Damage != 20 {
		t.Fatalf("challenger metadata should carry damage, got %d", toChallenger.Damage)
	}
}

func TestRoom_CorrectAnswerResolvesAndAlternatesTurn(t *testing.T) {
	f := startRoom(t, Config{}, nil)
	out1 := join(t, f, "c1", "p1")
	out2 := join(t, f, "c2", "p2")
	waitFor(t, out2, protocol.MsgStateUpdate)

	f.room.Inbox() <- FromClient{ClientID: "c1", PlayerID: "p1", Msg: protocol.ClientMessage{
		Type: protocol.MsgCardSelected, CardID: "a1", TargetID: "p2",
	}}
	waitFor(t, out2, protocol.MsgQuestionChallenge)

	f.room.Inbox() <- FromClient{ClientID: "c2", PlayerID: "p2", Msg: protocol.ClientMessage{
		Type: protocol.MsgSubmitAnswer, CardID: "a1", Choice: 1,
	}}

	resolved := waitFor(t, out1, protocol.MsgAnswerResolved)
	if resolved.IsCorrect == nil || !*resolved.IsCorrect {
		t.Fatalf("expected a correct resolution, got %+v", resolved)
	}
	if resolved.UpdatedHP["p1"] != 80 || resolved.UpdatedHP["p2"] != 100 {
		t.Fatalf("correct answer must reflect damage onto the challenger: %+v", resolved.UpdatedHP)
	}

	next := waitFor(t, out2, protocol.MsgStateUpdate)
	if next.State.Turn != "p2" || next.State.Phase != string(engine.PhaseCardSelection) {
		t.Fatalf("turn must alternate to the target, got %+v", next.State)
	}
}

func TestRoom_DeadlineExpiryIsForcedMiss(t *testing.T) {
	f := startRoom(t, Config{AnswerTimeout: 80 * time.Millisecond}, nil)
	join(t, f, "c1", "p1")
	out2 := join(t, f, "c2", "p2")
	waitFor(t, out2, protocol.MsgStateUpdate)

	f.room.Inbox() <- FromClient{ClientID: "c1", PlayerID: "p1", Msg: protocol.ClientMessage{
		Type: protocol.MsgCardSelected, CardID: "a1", TargetID: "p2",
	}}

	resolved := waitFor(t, out2, protocol.MsgAnswerResolved)
	if !resolved.Forced {
		t.Fatalf("expiry must resolve as a forced miss")
	}
	if resolved.IsCorrect == nil || *resolved.IsCorrect {
		t.Fatalf("a forced miss is an incorrect answer")
	}
	if resolved.UpdatedHP["p2"] != 80 {
		t.Fatalf("forced miss must damage the target, got %+v", resolved.UpdatedHP)
	}
}

func TestRoom_LateAnswerAfterExpiryIsRejectedToSenderOnly(t *testing.T) {
	f := startRoom(t, Config{AnswerTimeout: 80 * time.Millisecond}, nil)
	out1 := join(t, f, "c1", "p1")
	out2 := join(t, f, "c2", "p2")
	waitFor(t, out2, protocol.MsgStateUpdate)

	f.room.Inbox() <- FromClient{ClientID: "c1", PlayerID: "p1", Msg: protocol.ClientMessage{
		Type: protocol.MsgCardSelected, CardID: "a1", TargetID: "p2",
	}}
	waitFor(t, out2, protocol.MsgAnswerResolved)

	f.room.Inbox() <- FromClient{ClientID: "c2", PlayerID: "p2", Msg: protocol.ClientMessage{
		Type: protocol.MsgSubmitAnswer, CardID: "a1", Choice: 1,
	}}

	rejected := waitFor(t, out2, protocol.MsgIllegalAction)
	if rejected.Reason == "" {
		t.Fatalf("rejection must carry a reason code")
	}
	expectNo(t, out1, protocol.MsgIllegalAction, 150*time.Millisecond)
}

func TestRoom_SnapshotDeadlineIsVerbatim(t *testing.T) {
	f := startRoom(t, Config{}, nil)
	join(t, f, "c1", "p1")
	out2 := join(t, f, "c2", "p2")
	waitFor(t, out2, protocol.MsgStateUpdate)

	f.room.Inbox() <- FromClient{ClientID: "c1", PlayerID: "p1", Msg: protocol.ClientMessage{
		Type: protocol.MsgCardSelected, CardID: "a1", TargetID: "p2",
	}}
	waitFor(t, out2, protocol.MsgQuestionChallenge)

	v1 := getView(t, f, "p2")
	if v1.Challenge == nil {
		t.Fatalf("expected an active challenge in the snapshot")
	}
	time.Sleep(50 * time.Millisecond)
	v2 := getView(t, f, "p2")
	if !v1.Challenge.DeadlineAt.Equal(v2.Challenge.DeadlineAt) {
		t.Fatalf("deadline must be returned verbatim, got %v then %v",
			v1.Challenge.DeadlineAt, v2.Challenge.DeadlineAt)
	}
}

// waitEnv is waitFor but keeps the envelope, for tests that care about Seq.
func waitEnv(t *testing.T, ch <-chan Envelope, msgType string) Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", msgType)
			}
			if env.Msg.Type == msgType {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func TestRoom_ReconnectReplaysMissedEvents(t *testing.T) {
	f := startRoom(t, Config{}, nil)
	join(t, f, "c1", "p1")
	out2 := join(t, f, "c2", "p2")

	// Remember how far p2 had read before dropping.
	battle := waitEnv(t, out2, protocol.MsgStateUpdate)
	f.room.Inbox() <- Leave{ClientID: "c2"}

	// The challenge lands while p2 is away.
	f.room.Inbox() <- FromClient{ClientID: "c1", PlayerID: "p1", Msg: protocol.ClientMessage{
		Type: protocol.MsgCardSelected, CardID: "a1", TargetID: "p2",
	}}

	re := make(chan Envelope, 64)
	f.room.Inbox() <- Join{ClientID: "c3", PlayerID: "p2", LastSeq: battle.Seq, Outbox: re}

	replayed := waitEnv(t, re, protocol.MsgQuestionChallenge)
	if replayed.Msg.Question == nil {
		t.Fatalf("replayed challenge must still carry the question body for the target")
	}
	if replayed.Seq <= battle.Seq {
		t.Fatalf("replay must only cover events past last_seq %d, got %d", battle.Seq, replayed.Seq)
	}

	snap := waitFor(t, re, protocol.MsgStateUpdate)
	if snap.State.Phase != string(engine.PhaseAnswering) {
		t.Fatalf("resync snapshot must reflect the current phase, got %s", snap.State.Phase)
	}
}

func TestRoom_GameOverReportsResultOnceAndClosesOnAcks(t *testing.T) {
	f := startRoom(t, Config{}, func(s *engine.State) {
		s.Players[1].HP = 20
	})
	out1 := join(t, f, "c1", "p1")
	out2 := join(t, f, "c2", "p2")
	waitFor(t, out2, protocol.MsgStateUpdate)

	f.room.Inbox() <- FromClient{ClientID: "c1", PlayerID: "p1", Msg: protocol.ClientMessage{
		Type: protocol.MsgCardSelected, CardID: "a1", TargetID: "p2",
	}}
	waitFor(t, out2, protocol.MsgQuestionChallenge)

	f.room.Inbox() <- FromClient{ClientID: "c2", PlayerID: "p2", Msg: protocol.ClientMessage{
		Type: protocol.MsgSubmitAnswer, CardID: "a1", Choice: 0, // wrong
	}}

	over1 := waitFor(t, out1, protocol.MsgGameOver)
	over2 := waitFor(t, out2, protocol.MsgGameOver)
	if over1.WinnerID != "p1" || over2.WinnerID != "p1" {
		t.Fatalf("both clients must learn the winner, got %q and %q", over1.WinnerID, over2.WinnerID)
	}

	if f.sink.count() != 1 {
		t.Fatalf("result must be reported exactly once, got %d", f.sink.count())
	}

	f.room.Inbox() <- FromClient{ClientID: "c1", PlayerID: "p1", Msg: protocol.ClientMessage{Type: protocol.MsgAckResult}}
	f.room.Inbox() <- FromClient{ClientID: "c2", PlayerID: "p2", Msg: protocol.ClientMessage{Type: protocol.MsgAckResult}}

	select {
	case id := <-f.closed:
		if id != "R1" {
			t.Fatalf("wrong room retired: %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("room must retire itself after both acks")
	}
	if f.sink.count() != 1 {
		t.Fatalf("retirement must not re-report the result")
	}
}

func TestRoom_LeaveClosesOutbox(t *testing.T) {
	f := startRoom(t, Config{}, nil)
	out := join(t, f, "c1", "p1")
	waitFor(t, out, protocol.MsgStateUpdate)

	f.room.Inbox() <- Leave{ClientID: "c1"}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbox must be closed on leave so the transport writer can exit")
		}
	}
}

func TestRoom_LeaveUnknownClientIsHarmless(t *testing.T) {
	f := startRoom(t, Config{}, nil)
	out := join(t, f, "c1", "p1")

	f.room.Inbox() <- Leave{ClientID: "never-joined"}

	// The room keeps serving the attached client.
	v := getView(t, f, "p1")
	if v.RoomID != "R1" {
		t.Fatalf("room must survive a leave for an unknown client")
	}
	select {
	case _, ok := <-out:
		if !ok {
			t.Fatalf("wrong client's outbox was closed")
		}
	default:
	}
}

func TestRoom_PowerUpRollGrantedToTurnHolderOnly(t *testing.T) {
	f := startRoom(t, Config{
		PowerUpChance:  1,
		PowerUpCatalog: []engine.PowerUpKind{engine.PowerUpHeal},
	}, nil)
	out1 := join(t, f, "c1", "p1")
	out2 := join(t, f, "c2", "p2")

	granted := waitFor(t, out1, protocol.MsgPowerUpAvailable)
	if granted.Kind != string(engine.PowerUpHeal) {
		t.Fatalf("want heal granted, got %s", granted.Kind)
	}
	expectNo(t, out2, protocol.MsgPowerUpAvailable, 150*time.Millisecond)

	f.room.Inbox() <- FromClient{ClientID: "c1", PlayerID: "p1", Msg: protocol.ClientMessage{
		Type: protocol.MsgUsePowerUp, Kind: string(engine.PowerUpHeal),
	}}
	applied := waitFor(t, out2, protocol.MsgPowerUpApplied)
	if applied.Kind != string(engine.PowerUpHeal) {
		t.Fatalf("both clients see the applied effect, got %+v", applied)
	}
}
