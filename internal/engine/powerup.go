package engine

import "fmt"

const healAmount = 20

func applyRollPowerUp(s *State, cmd Command) ([]Event, error) {
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

	p.Available = cmd.Granted
	if cmd.Granted == nil {
		return nil, nil
	}
	return []Event{{
		Type:     EvtPowerUpGranted,
		PlayerID: p.ID,
		Kind:     *cmd.Granted,
	}}, nil
}

func applyUsePowerUp(s *State, cmd Command) ([]Event, error) {
	p := s.player(cmd.PlayerID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	switch s.Phase {
	case PhaseCardSelection, PhaseChallengeSent, PhaseAnswering:
	default:
		return nil, ErrWrongPhase
	}
	if p.ID != s.Turn {
		return nil, ErrWrongTurn
	}
	if p.Available == nil || *p.Available != cmd.Kind {
		return nil, ErrPowerUpUnavailable
	}
	p.Available = nil

	opp := s.opponent(p.ID)
	ev := Event{
		Type:     EvtPowerUpApplied,
		PlayerID: p.ID,
		Kind:     cmd.Kind,
	}

	switch cmd.Kind {
	case PowerUpHeal:
		p.HP = min(p.MaxHP, p.HP+healAmount)
		ev.Effect = fmt.Sprintf("restored up to %d HP", healAmount)

	case PowerUpDiscardRedraw:
		p.Hand = cmd.NewHand
		ev.Effect = fmt.Sprintf("discarded hand, drew %d", len(cmd.NewHand))

	case PowerUpDoubleDamage:
		p.Boosted = true
		ev.Effect = "next delivered hit deals double damage"

	case PowerUpDamageRoulette:
		h := applyHit(p, opp, cmd.RouletteDamage, false)
		ev.Damage = h.dealt
		ev.TargetID = opp.ID
		ev.Effect = fmt.Sprintf("roulette dealt %d", h.dealt)
		if sum := hitSummary(h); sum != "" {
			ev.Effect += ", " + sum
		}

	case PowerUpHPSwap:
		p.HP, opp.HP = opp.HP, p.HP
		ev.Effect = "HP swapped"

	case PowerUpMirrorShield, PowerUpBarrier, PowerUpSafetyNet:
		p.Armed = &ArmedDefense{Kind: cmd.Kind}
		ev.Effect = "armed"

	case PowerUpTaunt:
		ev.Effect = "taunt"
		return []Event{ev, {Type: EvtTaunt, PlayerID: p.ID, Emote: cmd.Emote}}, nil

	default:
		return nil, ErrPowerUpUnavailable
	}

	ev.HP = s.hpByPlayer()
	events := []Event{ev}

	// Roulette (or a mirror reflection of it) can end the game.
	if winner := s.winner(); winner != nil {
		s.Challenge = nil
		events = append(events, s.complete(winner)...)
	}
	return events, nil
}
