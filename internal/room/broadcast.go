package room

import (
	"github.com/brainclash/backend/internal/engine"
	"github.com/brainclash/backend/internal/protocol"
	"github.com/brainclash/backend/internal/questions"
)

func questionPayload(q questions.Question) *protocol.QuestionPayload {
	return &protocol.QuestionPayload{
		ID:      q.ID,
		Text:    q.Text,
		Choices: append([]string(nil), q.Choices...),
		Level:   string(q.Level),
	}
}

// dispatch turns engine events into sequenced wire messages with the right
// audience. Hidden information never rides on a broadcast: the question body
// goes to the challenge target only, hand contents only travel inside
// per-recipient state updates.
func (r *Room) dispatch(events []engine.Event) {
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtPlayerAttached:
			r.sendTo("", protocol.ServerMessage{
				Type:     protocol.MsgPlayerJoined,
				PlayerID: ev.PlayerID,
			})

		case engine.EvtChallengeIssued:
			deadline := ev.DeadlineAt
			// Full question to the target.
			r.sendTo(ev.TargetID, protocol.ServerMessage{
				Type:         protocol.MsgQuestionChallenge,
				ChallengerID: ev.PlayerID,
				TargetID:     ev.TargetID,
				CardID:       ev.Card.ID,
				Question:     questionPayload(ev.Card.Question),
				Damage:       ev.Damage,
				DeadlineAt:   &deadline,
			})
			// Metadata only to the challenger.
			r.sendTo(ev.PlayerID, protocol.ServerMessage{
				Type:         protocol.MsgQuestionChallenge,
				ChallengerID: ev.PlayerID,
				TargetID:     ev.TargetID,
				CardID:       ev.Card.ID,
				Damage:       ev.Damage,
				DeadlineAt:   &deadline,
			})

		case engine.EvtAnswerResolved:
			correct := ev.IsCorrect
			r.sendTo("", protocol.ServerMessage{
				Type:         protocol.MsgAnswerResolved,
				PlayerID:     ev.PlayerID, // target of the challenge
				ChallengerID: ev.TargetID, // resolver addressed the challenger as target
				IsCorrect:    &correct,
				Forced:       ev.Forced,
				Damage:       ev.Damage,
				Effect:       ev.Effect,
				UpdatedHP:    ev.HP,
			})

		case engine.EvtPowerUpGranted:
			r.sendTo(ev.PlayerID, protocol.ServerMessage{
				Type:     protocol.MsgPowerUpAvailable,
				PlayerID: ev.PlayerID,
				Kind:     string(ev.Kind),
			})

		case engine.EvtPowerUpApplied:
			r.sendTo("", protocol.ServerMessage{
				Type:      protocol.MsgPowerUpApplied,
				PlayerID:  ev.PlayerID,
				TargetID:  ev.TargetID,
				Kind:      string(ev.Kind),
				Damage:    ev.Damage,
				Effect:    ev.Effect,
				UpdatedHP: ev.HP,
			})

		case engine.EvtTaunt:
			r.sendTo("", protocol.ServerMessage{
				Type:     protocol.MsgTaunt,
				PlayerID: ev.PlayerID,
				Emote:    ev.Emote,
			})

		case engine.EvtGameCompleted:
			r.sendTo("", protocol.ServerMessage{
				Type:      protocol.MsgGameOver,
				WinnerID:  ev.WinnerID,
				UpdatedHP: ev.HP,
			})
		}
	}
}

// broadcastState sends each player their redacted authoritative snapshot.
// This is the canonical resync every client projection must yield to.
func (r *Room) broadcastState() {
	for _, p := range r.state.Players {
		r.sendTo(p.ID, protocol.ServerMessage{
			Type:  protocol.MsgStateUpdate,
			State: viewPtr(protocol.ViewFor(r.state, p.ID)),
		})
	}
}

// sendTo sequences msg, records it in the replay ring and delivers it to every
// connection of the audience player ("" means both players).
func (r *Room) sendTo(audience string, msg protocol.ServerMessage) {
	r.seq++
	msg.Seq = r.seq
	env := Envelope{Seq: r.seq, Msg: msg}

	r.replay = append(r.replay, replayEntry{env: env, audience: audience})
	if len(r.replay) > replayCap {
		r.replay = r.replay[len(r.replay)-replayCap:]
	}

	for id, c := range r.clients {
		if audience == "" || c.playerID == audience {
			r.deliver(id, env)
		}
	}
}

// deliver writes to one connection, dropping it if the outbox is full the way
// the transport expects slow consumers to be handled.
func (r *Room) deliver(clientID string, env Envelope) {
	c, ok := r.clients[clientID]
	if !ok {
		return
	}
	select {
	case c.outbox <- env:
	default:
		close(c.outbox)
		delete(r.clients, clientID)
	}
}
