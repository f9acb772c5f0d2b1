// Package questions defines the question-bank collaborator: the battle engine
// draws Cards from a Bank and never cares where the questions come from.
package questions

import (
	"context"

	"github.com/google/uuid"
)

// CognitiveLevel tags a question with its Bloom's-taxonomy level. The level
// determines the damage band of the card it is bound to.
type CognitiveLevel string

const (
	LevelRemembering   CognitiveLevel = "remembering"
	LevelUnderstanding CognitiveLevel = "understanding"
	LevelApplying      CognitiveLevel = "applying"
	LevelAnalyzing     CognitiveLevel = "analyzing"
	LevelEvaluating    CognitiveLevel = "evaluating"
	LevelCreating      CognitiveLevel = "creating"
)

var damageBands = map[CognitiveLevel]int{
	LevelRemembering:   5,
	LevelUnderstanding: 10,
	LevelApplying:      15,
	LevelAnalyzing:     20,
	LevelEvaluating:    25,
	LevelCreating:      30,
}

// DamageFor returns the damage band for a cognitive level. Unknown levels get
// the lowest band rather than zero so a mistagged question still stings.
func DamageFor(l CognitiveLevel) int {
	if d, ok := damageBands[l]; ok {
		return d
	}
	return damageBands[LevelRemembering]
}

type Question struct {
	ID      string
	Text    string
	Choices []string
	Answer  int // index into Choices
	Level   CognitiveLevel
}

// Card is one playable instance of a question. Two cards may bind the same
// question (across hands), but a card id is unique per instance.
type Card struct {
	ID       string
	Question Question
	Damage   int
}

func NewCard(q Question) Card {
	return Card{
		ID:       uuid.NewString(),
		Question: q,
		Damage:   DamageFor(q.Level),
	}
}

// Bank supplies cards for hands. Draw must not return two cards in the same
// call bound to the same question, and must skip questions whose ids appear in
// exclude (the requester's current hand).
type Bank interface {
	Draw(ctx context.Context, n int, exclude []string) ([]Card, error)
}
