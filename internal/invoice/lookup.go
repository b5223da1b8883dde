package invoice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"posdash/internal/api"
	"posdash/internal/logger"
	"posdash/internal/notify"
)

// DefaultSearchDelay is the quiet period before a lookup hits the backend.
const DefaultSearchDelay = 400 * time.Millisecond

// LookupState is the phase of the product lookup.
type LookupState int

const (
	StateIdle LookupState = iota
	StateDebouncing
	StateSearching
)

func (s LookupState) String() string {
	switch s {
	case StateDebouncing:
		return "debouncing"
	case StateSearching:
		return "searching"
	default:
		return "idle"
	}
}

// Searcher finds product candidates for a query text.
type Searcher interface {
	Search(ctx context.Context, text string) ([]Candidate, error)
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. time.AfterFunc in production.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// LookupOption configures a Lookup.
type LookupOption func(*Lookup)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) LookupOption {
	return func(l *Lookup) {
		if d > 0 {
			l.delay = d
		}
	}
}

// WithScheduler replaces the timer source.
func WithScheduler(s Scheduler) LookupOption {
	return func(l *Lookup) {
		if s != nil {
			l.scheduler = s
		}
	}
}

// WithResultsHook registers a callback run whenever the applied results change.
func WithResultsHook(fn func(text string, results []Candidate)) LookupOption {
	return func(l *Lookup) {
		l.onResults = fn
	}
}

// Lookup debounces product searches. Every keystroke restarts the timer and
// takes a new token; a search completion is applied only while its token is
// still the latest, so an abandoned query never overwrites newer results.
type Lookup struct {
	searcher  Searcher
	scheduler Scheduler
	delay     time.Duration
	notifier  notify.Notifier
	onResults func(text string, results []Candidate)
	log       zerolog.Logger

	mu      sync.Mutex
	state   LookupState
	text    string
	token   uint64
	timer   Timer
	results []Candidate
	err     error
}

// NewLookup creates an idle lookup.
func NewLookup(searcher Searcher, notifier notify.Notifier, opts ...LookupOption) *Lookup {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	l := &Lookup{
		searcher:  searcher,
		scheduler: clockScheduler{},
		delay:     DefaultSearchDelay,
		notifier:  notifier,
		log:       logger.WithComponent("product-lookup"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Type records new query text. Blank text clears the results at once without
// a search; anything else (re)starts the debounce timer.
func (l *Lookup) Type(ctx context.Context, text string) {
	l.mu.Lock()
	l.stopTimer()
	l.token++
	token := l.token
	l.text = text

	if strings.TrimSpace(text) == "" {
		l.state = StateIdle
		l.results = nil
		l.err = nil
		l.mu.Unlock()
		l.publish(text, nil)
		return
	}

	l.state = StateDebouncing
	l.timer = l.scheduler.AfterFunc(l.delay, func() {
		l.search(ctx, token, text)
	})
	l.mu.Unlock()
}

// Clear cancels any pending or in-flight search and drops the results.
func (l *Lookup) Clear() {
	l.mu.Lock()
	l.stopTimer()
	l.token++
	l.text = ""
	l.state = StateIdle
	l.results = nil
	l.err = nil
	l.mu.Unlock()
	l.publish("", nil)
}

func (l *Lookup) search(ctx context.Context, token uint64, text string) {
	l.mu.Lock()
	if token != l.token {
		l.mu.Unlock()
		return
	}
	l.state = StateSearching
	l.timer = nil
	l.mu.Unlock()

	query := strings.TrimSpace(text)
	l.log.Debug().Uint64("token", token).Str("query", query).Msg("Searching products")
	results, err := l.searcher.Search(ctx, query)

	l.mu.Lock()
	if token != l.token {
		latest := l.token
		l.mu.Unlock()
		l.log.Debug().
			Uint64("token", token).
			Uint64("latest", latest).
			Msg("Discarding stale search results")
		return
	}
	l.state = StateIdle
	l.err = err
	if err != nil {
		l.results = nil
	} else {
		l.results = results
	}
	applied := l.snapshot()
	l.mu.Unlock()

	if err != nil {
		l.log.Error().Err(err).Str("query", query).Msg("Product search failed")
		l.notifier.Error(api.FormatError(err, "Failed to search products"))
	}
	l.publish(text, applied)
}

// Results returns the last applied candidates. While State is not
// StateIdle they belong to an earlier text than Text.
func (l *Lookup) Results() []Candidate {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// State returns the current phase.
func (l *Lookup) State() LookupState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Text returns the latest query text.
func (l *Lookup) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text
}

// Err returns the failure of the last applied search, if any.
func (l *Lookup) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Lookup) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *Lookup) snapshot() []Candidate {
	out := make([]Candidate, len(l.results))
	copy(out, l.results)
	return out
}

func (l *Lookup) publish(text string, results []Candidate) {
	if l.onResults != nil {
		l.onResults(text, results)
	}
}
