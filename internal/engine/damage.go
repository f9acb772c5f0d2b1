package engine

import (
	"fmt"
	"time"
)

// hit is the outcome of one damage instance after modifiers.
type hit struct {
	dealt     int // applied to dst after defenses
	reflected int // applied back to src by mirror-shield
	absorbed  int // soaked by barrier
	saved     bool
	boosted   bool
	consumed  *PowerUpKind
}

// applyHit runs one damage instance from src to dst through the modifier
// pipeline: the inflictor's double-damage boost first (card hits only, via
// allowBoost), then whichever defense dst has armed. HP is clamped at 0 here;
// the caller checks for game over.
func applyHit(src, dst *Player, base int, allowBoost bool) hit {
	h := hit{dealt: base}

	if allowBoost && src.Boosted {
		h.dealt *= 2
		h.boosted = true
		src.Boosted = false
	}

	if dst.Armed != nil {
		kind := dst.Armed.Kind
		switch kind {
		case PowerUpMirrorShield:
			half := h.dealt / 2
			h.reflected = h.dealt - half
			h.dealt = half
			dst.Armed = nil
			h.consumed = &kind
		case PowerUpBarrier:
			h.absorbed = min(15, h.dealt)
			h.dealt -= h.absorbed
			dst.Armed = nil
			h.consumed = &kind
		case PowerUpSafetyNet:
			// Triggers only on a would-be-lethal hit, and only once per game.
			if dst.HP-h.dealt <= 0 && !dst.SafetyNetUsed {
				h.dealt = dst.HP - 1
				h.saved = true
				dst.SafetyNetUsed = true
				dst.Armed = nil
				h.consumed = &kind
			}
		}
	}

	dst.HP = max(0, dst.HP-h.dealt)
	if h.reflected > 0 {
		// Single hop: reflected damage does not re-enter the pipeline.
		src.HP = max(0, src.HP-h.reflected)
	}
	return h
}

// resolveChallenge settles the active challenge. A correct answer reflects the
// card's damage onto the challenger; a wrong answer or a forced miss damages
// the target. Turn alternates unconditionally afterwards.
func resolveChallenge(s *State, correct, forced bool) []Event {
	ch := s.Challenge
	challenger := s.player(ch.ChallengerID)
	target := s.player(ch.TargetID)

	var h hit
	if correct {
		// The target delivers the hit back; the challenger's boost is neither
		// applied nor consumed.
		h = applyHit(target, challenger, ch.Card.Damage, false)
	} else {
		h = applyHit(challenger, target, ch.Card.Damage, true)
	}

	events := []Event{{
		Type:      EvtAnswerResolved,
		PlayerID:  ch.TargetID,
		TargetID:  ch.ChallengerID,
		IsCorrect: correct,
		Forced:    forced,
		Damage:    h.dealt,
		Effect:    hitSummary(h),
		HP:        s.hpByPlayer(),
	}}

	s.Challenge = nil

	if winner := s.winner(); winner != nil {
		events = append(events, s.complete(winner)...)
		return events
	}

	// Turn passes to the other player; per-turn availability dies with the
	// turn, armed defenses do not.
	next := s.opponent(ch.ChallengerID)
	s.Turn = next.ID
	s.Players[0].Available = nil
	s.Players[1].Available = nil
	s.Phase = PhaseCardSelection

	events = append(events, Event{Type: EvtTurnAdvanced, NextTurnID: next.ID})
	return events
}

// winner returns the surviving player if the other one is at 0 HP.
func (s *State) winner() *Player {
	if s.Players[0].HP == 0 {
		return &s.Players[1]
	}
	if s.Players[1].HP == 0 {
		return &s.Players[0]
	}
	return nil
}

// complete moves the room into the terminal phase. Result is written exactly
// once; Apply rejects every later command with ErrGameCompleted.
func (s *State) complete(winner *Player) []Event {
	loser := s.opponent(winner.ID)
	now := time.Now()
	s.Result = &Result{
		RoomID:   s.RoomID,
		WinnerID: winner.ID,
		LoserID:  loser.ID,
		FinalHP:  s.hpByPlayer(),
		Correct: map[string]int{
			s.Players[0].ID: s.Players[0].CorrectAnswers,
			s.Players[1].ID: s.Players[1].CorrectAnswers,
		},
		EndedAt:  now,
		Duration: now.Sub(s.CreatedAt),
	}
	s.Phase = PhaseGameOver
	return []Event{{
		Type:     EvtGameCompleted,
		WinnerID: winner.ID,
		HP:       s.hpByPlayer(),
	}}
}

func hitSummary(h hit) string {
	switch {
	case h.saved:
		return "safety net held at 1 HP"
	case h.reflected > 0:
		return fmt.Sprintf("mirror shield reflected %d", h.reflected)
	case h.absorbed > 0:
		return fmt.Sprintf("barrier absorbed %d", h.absorbed)
	case h.boosted:
		return "double damage"
	default:
		return ""
	}
}
