// Package store holds the Postgres adapters for the two external
// collaborators the engine talks to: the question bank it draws cards from
// and the sink that receives terminal match results.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/brainclash/backend/internal/engine"
	"github.com/brainclash/backend/internal/questions"
)

type QuestionRow struct {
	ID      string `gorm:"primaryKey"`
	Text    string `gorm:"not null"`
	Choices string `gorm:"not null"` // JSON array
	Answer  int    `gorm:"not null"`
	Level   string `gorm:"not null;index"`
}

func (QuestionRow) TableName() string { return "questions" }

type MatchResultRow struct {
	ID            uint   `gorm:"primaryKey"`
	RoomID        string `gorm:"not null;index"`
	WinnerID      string `gorm:"not null"`
	LoserID       string `gorm:"not null"`
	WinnerHP      int
	LoserHP       int
	WinnerCorrect int
	LoserCorrect  int
	DurationMS    int64
	EndedAt       time.Time
	CreatedAt     time.Time
}

func (MatchResultRow) TableName() string { return "match_results" }

type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&QuestionRow{}, &MatchResultRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Draw implements questions.Bank with a random sample that skips the
// requester's current hand.
func (s *Store) Draw(ctx context.Context, n int, exclude []string) ([]questions.Card, error) {
	q := s.db.WithContext(ctx).Model(&QuestionRow{})
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}

	var rows []QuestionRow
	if err := q.Order("random()").Limit(n).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("draw questions: %w", err)
	}
	if len(rows) == 0 {
		return nil, questions.ErrBankExhausted
	}

	cards := make([]questions.Card, 0, len(rows))
	for _, row := range rows {
		var choices []string
		if err := json.Unmarshal([]byte(row.Choices), &choices); err != nil {
			return nil, fmt.Errorf("question %s choices: %w", row.ID, err)
		}
		cards = append(cards, questions.NewCard(questions.Question{
			ID:      row.ID,
			Text:    row.Text,
			Choices: choices,
			Answer:  row.Answer,
			Level:   questions.CognitiveLevel(row.Level),
		}))
	}
	return cards, nil
}

// Record implements room.ResultSink.
func (s *Store) Record(ctx context.Context, r engine.Result) error {
	row := MatchResultRow{
		RoomID:        r.RoomID,
		WinnerID:      r.WinnerID,
		LoserID:       r.LoserID,
		WinnerHP:      r.FinalHP[r.WinnerID],
		LoserHP:       r.FinalHP[r.LoserID],
		WinnerCorrect: r.Correct[r.WinnerID],
		LoserCorrect:  r.Correct[r.LoserID],
		DurationMS:    r.Duration.Milliseconds(),
		EndedAt:       r.EndedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// SeedQuestions inserts a question pool, skipping ids that already exist.
func (s *Store) SeedQuestions(ctx context.Context, pool []questions.Question) error {
	for _, q := range pool {
		choices, err := json.Marshal(q.Choices)
		if err != nil {
			return fmt.Errorf("marshal choices for %s: %w", q.ID, err)
		}
		row := QuestionRow{
			ID:      q.ID,
			Text:    q.Text,
			Choices: string(choices),
			Answer:  q.Answer,
			Level:   string(q.Level),
		}
		if err := s.db.WithContext(ctx).
			Where(QuestionRow{ID: q.ID}).
			FirstOrCreate(&row).Error; err != nil {
			return fmt.Errorf("seed question %s: %w", q.ID, err)
		}
	}
	return nil
}
