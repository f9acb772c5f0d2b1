package protocol

import (
	"errors"
	"time"

	"github.com/brainclash/backend/internal/engine"
	"github.com/brainclash/backend/internal/questions"
)

// RoomView is the snapshot served to one requester. Redaction rules: a player
// sees their own hand in full and the opponent's as a count only; the active
// challenge's question body is included only for its target; correct answers
// never leave the server.
type RoomView struct {
	RoomID    string         `json:"room_id"`
	Phase     string         `json:"phase"`
	Turn      string         `json:"current_turn_player_id"`
	Players   []PlayerView   `json:"players"`
	Challenge *ChallengeView `json:"active_challenge,omitempty"`
	Result    *ResultView    `json:"result,omitempty"`
}

type PlayerView struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	HP             int        `json:"hp"`
	MaxHP          int        `json:"max_hp"`
	CorrectAnswers int        `json:"correct_answers"`
	HandCount      int        `json:"hand_count"`
	Hand           []CardView `json:"hand,omitempty"` // requester's own hand only
	Available      string     `json:"available_powerup,omitempty"`
	Armed          string     `json:"armed_defense,omitempty"`
}

type CardView struct {
	ID       string           `json:"id"`
	Damage   int              `json:"damage"`
	Question *QuestionPayload `json:"question"`
}

type ChallengeView struct {
	CardID       string           `json:"card_id"`
	ChallengerID string           `json:"challenger_id"`
	TargetID     string           `json:"target_id"`
	Damage       int              `json:"damage"`
	DeadlineAt   time.Time        `json:"deadline_at"`
	Answered     bool             `json:"answered"`
	Question     *QuestionPayload `json:"question,omitempty"` // target only
}

type ResultView struct {
	WinnerID string         `json:"winner_id"`
	LoserID  string         `json:"loser_id"`
	FinalHP  map[string]int `json:"final_hp"`
	Correct  map[string]int `json:"correct_answers"`
	EndedAt  time.Time      `json:"ended_at"`
}

func questionPayload(q questions.Question) *QuestionPayload {
	return &QuestionPayload{
		ID:      q.ID,
		Text:    q.Text,
		Choices: append([]string(nil), q.Choices...),
		Level:   string(q.Level),
	}
}

func CardPayload(c questions.Card) CardView {
	return CardView{ID: c.ID, Damage: c.Damage, Question: questionPayload(c.Question)}
}

// ViewFor projects the authoritative state for one requester. An empty or
// unknown requesterID yields the fully redacted view (both hands as counts).
func ViewFor(s engine.State, requesterID string) RoomView {
	v := RoomView{
		RoomID:  s.RoomID,
		Phase:   string(s.Phase),
		Turn:    s.Turn,
		Players: make([]PlayerView, 0, len(s.Players)),
	}

	for _, p := range s.Players {
		pv := PlayerView{
			ID:             p.ID,
			Name:           p.Name,
			HP:             p.HP,
			MaxHP:          p.MaxHP,
			CorrectAnswers: p.CorrectAnswers,
			HandCount:      len(p.Hand),
		}
		if p.ID == requesterID {
			for _, c := range p.Hand {
				pv.Hand = append(pv.Hand, CardPayload(c))
			}
			if p.Available != nil {
				pv.Available = string(*p.Available)
			}
			if p.Armed != nil {
				pv.Armed = string(p.Armed.Kind)
			}
		}
		v.Players = append(v.Players, pv)
	}

	if ch := s.Challenge; ch != nil {
		cv := &ChallengeView{
			CardID:       ch.Card.ID,
			ChallengerID: ch.ChallengerID,
			TargetID:     ch.TargetID,
			Damage:       ch.Card.Damage,
			DeadlineAt:   ch.DeadlineAt,
			Answered:     ch.Answered,
		}
		if requesterID == ch.TargetID {
			cv.Question = questionPayload(ch.Card.Question)
		}
		v.Challenge = cv
	}

	if r := s.Result; r != nil {
		v.Result = &ResultView{
			WinnerID: r.WinnerID,
			LoserID:  r.LoserID,
			FinalHP:  r.FinalHP,
			Correct:  r.Correct,
			EndedAt:  r.EndedAt,
		}
	}
	return v
}

// ReasonFor maps an engine rejection to its wire reason code.
func ReasonFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, engine.ErrWrongTurn):
		return ReasonWrongTurn
	case errors.Is(err, engine.ErrWrongPhase):
		return ReasonWrongPhase
	case errors.Is(err, engine.ErrUnknownPlayer):
		return ReasonUnknownPlayer
	case errors.Is(err, engine.ErrCardNotInHand):
		return ReasonCardNotInHand
	case errors.Is(err, engine.ErrBadTarget):
		return ReasonBadTarget
	case errors.Is(err, engine.ErrOwnQuestion):
		return ReasonOwnQuestion
	case errors.Is(err, engine.ErrChallengeMismatch):
		return ReasonChallengeMismatch
	case errors.Is(err, engine.ErrAlreadyAnswered):
		return ReasonAlreadyAnswered
	case errors.Is(err, engine.ErrPowerUpUnavailable):
		return ReasonPowerUpUnavailable
	case errors.Is(err, engine.ErrGameCompleted):
		return ReasonGameCompleted
	default:
		return ReasonBadPayload
	}
}
