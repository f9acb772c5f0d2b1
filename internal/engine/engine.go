// Package engine is the pure battle state machine. Apply is the single place
// guard conditions live: every mutation (card selection, answers, deadline
// expiry, power-ups) goes through it, and everything random (draws, rolls,
// roulette damage) is decided by the caller and passed in on the Command, so
// Apply is deterministic and the room actor stays the only writer.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/brainclash/backend/internal/questions"
)

var (
	ErrUnknownPlayer      = errors.New("player not in room")
	ErrWrongTurn          = errors.New("not your turn")
	ErrWrongPhase         = errors.New("action not legal in current phase")
	ErrCardNotInHand      = errors.New("card not in hand")
	ErrBadTarget          = errors.New("target must be the opponent")
	ErrOwnQuestion        = errors.New("cannot answer your own question")
	ErrChallengeMismatch  = errors.New("card does not match active challenge")
	ErrAlreadyAnswered    = errors.New("challenge already resolved")
	ErrPowerUpUnavailable = errors.New("power-up not available")
	ErrGameCompleted      = errors.New("game already completed")
	ErrUnsupportedCommand = errors.New("unsupported command")

	// ErrInvariant means the machine itself is broken. The room must be
	// terminated; no recovery is attempted.
	ErrInvariant = errors.New("state invariant violated")
)

type Phase string

const (
	PhaseSetup         Phase = "setup"
	PhaseCardSelection Phase = "cardSelection"
	PhaseChallengeSent Phase = "challengeSent"
	PhaseAnswering     Phase = "answering"
	PhaseGameOver      Phase = "gameOver"
)

// PowerUpKind enumerates the modifier catalog. Heal through taunt are
// immediate; mirror-shield, barrier and safety-net arm and persist until
// triggered.
type PowerUpKind string

const (
	PowerUpHeal           PowerUpKind = "heal"
	PowerUpDiscardRedraw  PowerUpKind = "discard_redraw"
	PowerUpDoubleDamage   PowerUpKind = "double_damage"
	PowerUpDamageRoulette PowerUpKind = "damage_roulette"
	PowerUpHPSwap         PowerUpKind = "hp_swap"
	PowerUpMirrorShield   PowerUpKind = "mirror_shield"
	PowerUpBarrier        PowerUpKind = "barrier"
	PowerUpSafetyNet      PowerUpKind = "safety_net"
	PowerUpTaunt          PowerUpKind = "taunt"
)

// Catalog is the active power-up set a per-turn roll picks from.
var Catalog = []PowerUpKind{
	PowerUpHeal,
	PowerUpDiscardRedraw,
	PowerUpDoubleDamage,
	PowerUpDamageRoulette,
	PowerUpHPSwap,
	PowerUpMirrorShield,
	PowerUpBarrier,
	PowerUpSafetyNet,
	PowerUpTaunt,
}

func IsArmedKind(k PowerUpKind) bool {
	switch k {
	case PowerUpMirrorShield, PowerUpBarrier, PowerUpSafetyNet:
		return true
	}
	return false
}

// ArmedDefense is a defensive modifier waiting for its trigger. It survives
// turn boundaries, unlike the per-turn Available slot.
type ArmedDefense struct {
	Kind PowerUpKind
}

type Player struct {
	ID             string
	Name           string
	HP             int
	MaxHP          int
	Hand           []questions.Card
	CorrectAnswers int
	Attached       bool

	// Available is this turn's rolled power-up. Cleared when the turn ends,
	// used or not.
	Available *PowerUpKind
	// Armed persists until triggered. One slot; arming again replaces it.
	Armed *ArmedDefense
	// Boosted is the one-shot double-damage multiplier for the next card hit
	// this player successfully delivers.
	Boosted bool
	// SafetyNetUsed: safety-net saves a player at most once per game, even if
	// rolled again.
	SafetyNetUsed bool
}

type Challenge struct {
	Card         questions.Card
	ChallengerID string
	TargetID     string
	DeadlineAt   time.Time
	Answered     bool
}

type Result struct {
	RoomID   string
	WinnerID string
	LoserID  string
	FinalHP  map[string]int
	Correct  map[string]int
	EndedAt  time.Time
	Duration time.Duration
}

type State struct {
	RoomID    string
	Players   [2]Player
	Phase     Phase
	Turn      string // id of the turn-holder
	Challenge *Challenge
	CreatedAt time.Time
	Result    *Result
}

type CommandType string

const (
	CmdAttach         CommandType = "Attach"
	CmdSelectCard     CommandType = "SelectCard"
	CmdIssueChallenge CommandType = "IssueChallenge"
	CmdSubmitAnswer   CommandType = "SubmitAnswer"
	CmdForceMiss      CommandType = "ForceMiss"
	CmdRollPowerUp    CommandType = "RollPowerUp"
	CmdUsePowerUp     CommandType = "UsePowerUp"
)

type Command struct {
	Type     CommandType
	PlayerID string

	// SelectCard
	CardID      string
	TargetID    string
	Replacement *questions.Card // drawn by the caller, may be nil if the bank ran dry

	// IssueChallenge
	DeadlineAt time.Time

	// SubmitAnswer
	Choice int

	// RollPowerUp: nil means the roll came up empty.
	Granted *PowerUpKind

	// UsePowerUp
	Kind           PowerUpKind
	NewHand        []questions.Card // discard_redraw
	RouletteDamage int              // damage_roulette, rolled by the caller
	Emote          string           // taunt
}

type EventType string

const (
	EvtPlayerAttached  EventType = "PlayerAttached"
	EvtBattleStarted   EventType = "BattleStarted"
	EvtCardPlayed      EventType = "CardPlayed"
	EvtChallengeIssued EventType = "ChallengeIssued"
	EvtAnswerResolved  EventType = "AnswerResolved"
	EvtPowerUpGranted  EventType = "PowerUpGranted"
	EvtPowerUpApplied  EventType = "PowerUpApplied"
	EvtTaunt           EventType = "Taunt"
	EvtTurnAdvanced    EventType = "TurnAdvanced"
	EvtGameCompleted   EventType = "GameCompleted"
)

type Event struct {
	Type       EventType
	PlayerID   string
	TargetID   string
	Card       *questions.Card
	DeadlineAt time.Time
	IsCorrect  bool
	Forced     bool
	Damage     int
	HP         map[string]int
	Kind       PowerUpKind
	Effect     string
	Emote      string
	WinnerID   string
	NextTurnID string
}

// Apply validates cmd against s and returns the events it produced plus the
// successor state. On error the returned state is s unchanged.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.Phase == PhaseGameOver && cmd.Type != CmdAttach {
		return nil, s, ErrGameCompleted
	}

	ns := s.clone()

	var events []Event
	var err error

	switch cmd.Type {
	case CmdAttach:
		events, err = applyAttach(&ns, cmd)
	case CmdSelectCard:
		events, err = applySelectCard(&ns, cmd)
	case CmdIssueChallenge:
		events, err = applyIssueChallenge(&ns, cmd)
	case CmdSubmitAnswer:
		events, err = applySubmitAnswer(&ns, cmd)
	case CmdForceMiss:
		events, err = applyForceMiss(&ns, cmd)
	case CmdRollPowerUp:
		events, err = applyRollPowerUp(&ns, cmd)
	case CmdUsePowerUp:
		events, err = applyUsePowerUp(&ns, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
	if err != nil {
		return nil, s, err
	}

	if verr := ns.validate(); verr != nil {
		return nil, s, fmt.Errorf("%w: %v", ErrInvariant, verr)
	}
	return events, ns, nil
}

func applyAttach(s *State, cmd Command) ([]Event, error) {
	p := s.player(cmd.PlayerID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	p.Attached = true
	events := []Event{{Type: EvtPlayerAttached, PlayerID: p.ID}}

	// Reconnects after setup change nothing else: state, challenge and
	// deadline stay exactly as they were.
	if s.Phase != PhaseSetup {
		return events, nil
	}
	if s.Players[0].Attached && s.Players[1].Attached {
		s.Phase = PhaseCardSelection
		events = append(events, Event{
			Type:       EvtBattleStarted,
			NextTurnID: s.Turn,
			HP:         s.hpByPlayer(),
		})
	}
	return events, nil
}

func applySelectCard(s *State, cmd Command) ([]Event, error) {
	p := s.player(cmd.PlayerID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if s.Phase != PhaseCardSelection {
		return nil, ErrWrongPhase
	}
	if p.ID != s.Turn {
		return nil, ErrWrongTurn
	}
	if cmd.TargetID != s.opponent(p.ID).ID {
		return nil, ErrBadTarget
	}

	idx := -1
	for i, c := range p.Hand {
		if c.ID == cmd.CardID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrCardNotInHand
	}

	card := p.Hand[idx]
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	if cmd.Replacement != nil {
		p.Hand = append(p.Hand, *cmd.Replacement)
	}

	s.Challenge = &Challenge{
		Card:         card,
		ChallengerID: p.ID,
		TargetID:     cmd.TargetID,
	}
	s.Phase = PhaseChallengeSent

	return []Event{{
		Type:     EvtCardPlayed,
		PlayerID: p.ID,
		TargetID: cmd.TargetID,
		Card:     &card,
		Damage:   card.Damage,
	}}, nil
}

func applyIssueChallenge(s *State, cmd Command) ([]Event, error) {
	if s.Phase != PhaseChallengeSent || s.Challenge == nil {
		return nil, ErrWrongPhase
	}
	s.Challenge.DeadlineAt = cmd.DeadlineAt
	s.Phase = PhaseAnswering

	card := s.Challenge.Card
	return []Event{{
		Type:       EvtChallengeIssued,
		PlayerID:   s.Challenge.ChallengerID,
		TargetID:   s.Challenge.TargetID,
		Card:       &card,
		Damage:     card.Damage,
		DeadlineAt: cmd.DeadlineAt,
	}}, nil
}

func applySubmitAnswer(s *State, cmd Command) ([]Event, error) {
	p := s.player(cmd.PlayerID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if s.Phase != PhaseAnswering || s.Challenge == nil {
		return nil, ErrWrongPhase
	}
	if p.ID == s.Challenge.ChallengerID {
		return nil, ErrOwnQuestion
	}
	if p.ID != s.Challenge.TargetID {
		return nil, ErrUnknownPlayer
	}
	if cmd.CardID != s.Challenge.Card.ID {
		return nil, ErrChallengeMismatch
	}
	if s.Challenge.Answered {
		return nil, ErrAlreadyAnswered
	}
	s.Challenge.Answered = true

	correct := cmd.Choice == s.Challenge.Card.Question.Answer
	if correct {
		p.CorrectAnswers++
	}
	return resolveChallenge(s, correct, false), nil
}

// applyForceMiss is deadline expiry: resolved exactly like an incorrect
// submission by the target.
func applyForceMiss(s *State, _ Command) ([]Event, error) {
	if s.Phase != PhaseAnswering || s.Challenge == nil {
		return nil, ErrWrongPhase
	}
	if s.Challenge.Answered {
		return nil, ErrAlreadyAnswered
	}
	s.Challenge.Answered = true
	return resolveChallenge(s, false, true), nil
}
