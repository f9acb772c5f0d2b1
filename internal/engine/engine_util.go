package engine

import (
	"fmt"
	"time"

	"github.com/brainclash/backend/internal/questions"
)

type PlayerInfo struct {
	ID   string
	Name string
}

// NewState builds the initial room state. Hands are dealt at creation; the
// match creator (first of the pair) holds the first turn.
func NewState(roomID string, creator, opponent PlayerInfo, maxHP int, hands [2][]questions.Card) State {
	return State{
		RoomID: roomID,
		Players: [2]Player{
			{ID: creator.ID, Name: creator.Name, HP: maxHP, MaxHP: maxHP, Hand: hands[0]},
			{ID: opponent.ID, Name: opponent.Name, HP: maxHP, MaxHP: maxHP, Hand: hands[1]},
		},
		Phase:     PhaseSetup,
		Turn:      creator.ID,
		CreatedAt: time.Now(),
	}
}

func (s *State) player(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

func (s *State) opponent(id string) *Player {
	if s.Players[0].ID == id {
		return &s.Players[1]
	}
	return &s.Players[0]
}

func (s *State) hpByPlayer() map[string]int {
	return map[string]int{
		s.Players[0].ID: s.Players[0].HP,
		s.Players[1].ID: s.Players[1].HP,
	}
}

// clone deep-copies the state so a failed Apply never leaks partial mutation.
func (s State) clone() State {
	ns := s
	for i := range ns.Players {
		ns.Players[i].Hand = append([]questions.Card(nil), s.Players[i].Hand...)
		if s.Players[i].Available != nil {
			k := *s.Players[i].Available
			ns.Players[i].Available = &k
		}
		if s.Players[i].Armed != nil {
			a := *s.Players[i].Armed
			ns.Players[i].Armed = &a
		}
	}
	if s.Challenge != nil {
		c := *s.Challenge
		ns.Challenge = &c
	}
	if s.Result != nil {
		r := *s.Result
		ns.Result = &r
	}
	return ns
}

// validate checks the invariants that must hold after every mutation.
func (s *State) validate() error {
	cardOwners := make(map[string]string)
	for i := range s.Players {
		p := &s.Players[i]
		if p.HP < 0 || p.HP > p.MaxHP {
			return fmt.Errorf("player %s HP %d outside [0,%d]", p.ID, p.HP, p.MaxHP)
		}
		seen := make(map[string]bool, len(p.Hand))
		for _, c := range p.Hand {
			if seen[c.Question.ID] {
				return fmt.Errorf("player %s holds duplicate question %s", p.ID, c.Question.ID)
			}
			seen[c.Question.ID] = true
			if owner, ok := cardOwners[c.ID]; ok {
				return fmt.Errorf("card %s held by both %s and %s", c.ID, owner, p.ID)
			}
			cardOwners[c.ID] = p.ID
		}
	}
	if s.player(s.Turn) == nil {
		return fmt.Errorf("turn-holder %q not in room", s.Turn)
	}
	if s.Phase == PhaseGameOver && s.Result == nil {
		return fmt.Errorf("terminal phase without result")
	}
	if s.Phase != PhaseGameOver && s.Result != nil {
		return fmt.Errorf("result set before terminal phase")
	}
	if (s.Phase == PhaseChallengeSent || s.Phase == PhaseAnswering) && s.Challenge == nil {
		return fmt.Errorf("phase %s without active challenge", s.Phase)
	}
	return nil
}

func ContainsEvent(events []Event, t EventType) bool {
	for _, e := range events {
		if e.Type == t {
			return true
		}
	}
	return false
}
