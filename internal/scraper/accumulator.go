package scraper

import (
	"fmt"

	"github.com/maltedev/life-quote-scraper/internal/models"
)

type entryState int

const (
	stateUnseen entryState = iota
	statePending
	stateResolved
	stateFailed
)

func (s entryState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateResolved:
		return "resolved"
	case stateFailed:
		return "failed"
	default:
		return "unseen"
	}
}

// Accumulator holds the results and the unresolved combinations of a run.
// Every combination is in at most one of resolved, failed or pending.
type Accumulator struct {
	results  []models.QuoteResult
	noOffers []models.Combination
	failed   []models.FailedCombination
	states   map[string]entryState
	resolved int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{states: make(map[string]entryState)}
}

// Record applies one attempt. Attempts for already resolved combinations are
// rejected so a combination never ends up both resolved and failed.
func (a *Accumulator) Record(at Attempt) error {
	key := at.Combination.Key()

	switch a.states[key] {
	case stateResolved:
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, at.Combination)
	case stateFailed:
		a.dropFailure(key)
	}

	switch at.Outcome.Kind {
	case models.OutcomeSuccess:
		for _, p := range at.Outcome.Premiums {
			a.results = append(a.results, models.QuoteResult{
				Combination: at.Combination,
				Premium:     p,
				ScrapedAt:   at.At,
			})
		}
		a.states[key] = stateResolved
		a.resolved++
	case models.OutcomeNoOffers:
		a.noOffers = append(a.noOffers, at.Combination)
		a.states[key] = stateResolved
		a.resolved++
	default:
		a.failed = append(a.failed, at.failure())
		a.states[key] = stateFailed
	}
	return nil
}

// TakeFailures hands the current failures to a retry round and marks them
// pending.
func (a *Accumulator) TakeFailures() []models.FailedCombination {
	taken := a.failed
	a.failed = nil
	for _, f := range taken {
		a.states[f.Combination.Key()] = statePending
	}
	return taken
}

// Restore puts back failures a round did not get to, so unresolved
// combinations are never lost between rounds.
func (a *Accumulator) Restore(taken []models.FailedCombination) int {
	n := 0
	for _, f := range taken {
		key := f.Combination.Key()
		if a.states[key] != statePending {
			continue
		}
		a.failed = append(a.failed, f)
		a.states[key] = stateFailed
		n++
	}
	return n
}

func (a *Accumulator) dropFailure(key string) {
	for i, f := range a.failed {
		if f.Combination.Key() == key {
			a.failed = append(a.failed[:i], a.failed[i+1:]...)
			return
		}
	}
}

func (a *Accumulator) Results() []models.QuoteResult {
	return append([]models.QuoteResult(nil), a.results...)
}

func (a *Accumulator) NoOffers() []models.Combination {
	return append([]models.Combination(nil), a.noOffers...)
}

func (a *Accumulator) Failures() []models.FailedCombination {
	return append([]models.FailedCombination(nil), a.failed...)
}

func (a *Accumulator) FailedCount() int {
	return len(a.failed)
}

func (a *Accumulator) ResolvedCount() int {
	return a.resolved
}

// Seen is the number of distinct combinations recorded so far.
func (a *Accumulator) Seen() int {
	return len(a.states)
}

func (a *Accumulator) state(c models.Combination) entryState {
	return a.states[c.Key()]
}
