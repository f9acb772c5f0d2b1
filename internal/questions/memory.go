package questions

import (
	"context"
	"errors"
	"math/rand"
	"sync"
)

var ErrBankExhausted = errors.New("question bank exhausted")

// MemoryBank is the in-process Bank used when no database is configured, and
// by tests. Safe for concurrent use by many room actors.
type MemoryBank struct {
	mu   sync.Mutex
	rng  *rand.Rand
	pool []Question
}

func NewMemoryBank(pool []Question, seed int64) *MemoryBank {
	return &MemoryBank{
		rng:  rand.New(rand.NewSource(seed)),
		pool: pool,
	}
}

func (b *MemoryBank) Draw(_ context.Context, n int, exclude []string) ([]Card, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	var eligible []Question
	for _, q := range b.pool {
		if !skip[q.ID] {
			eligible = append(eligible, q)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrBankExhausted
	}

	b.rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	if n > len(eligible) {
		n = len(eligible)
	}

	cards := make([]Card, 0, n)
	for _, q := range eligible[:n] {
		cards = append(cards, NewCard(q))
	}
	return cards, nil
}
