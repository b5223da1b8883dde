// Package notify delivers user-visible messages (success, warning, error).
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"posdash/internal/logger"
)

// Level is the severity of a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier receives user-visible notices. Each failed operation emits exactly one.
type Notifier interface {
	Success(msg string)
	Warn(msg string)
	Error(msg string)
}

// Console prints notices to a writer and mirrors them to the log.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	log zerolog.Logger
}

// NewConsole creates a notifier writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, log: logger.WithComponent("notify")}
}

func (c *Console) Success(msg string) { c.emit(LevelSuccess, "✓", msg) }
func (c *Console) Warn(msg string)    { c.emit(LevelWarning, "!", msg) }
func (c *Console) Error(msg string)   { c.emit(LevelError, "✗", msg) }

func (c *Console) emit(level Level, mark, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", mark, msg)
	c.log.Debug().Str("level", string(level)).Msg(msg)
}

// Notice is one recorded message.
type Notice struct {
	Level   Level
	Message string
}

// Recorder keeps notices in memory. Used by tests and by callers that render
// notices themselves.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Success(msg string) { r.add(LevelSuccess, msg) }
func (r *Recorder) Warn(msg string)    { r.add(LevelWarning, msg) }
func (r *Recorder) Error(msg string)   { r.add(LevelError, msg) }

func (r *Recorder) add(level Level, msg string) {
	r.mu.Lock()
	r.notices = append(r.notices, Notice{Level: level, Message: msg})
	r.mu.Unlock()
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Count returns the number of notices at the given level.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, notice := range r.notices {
		if notice.Level == level {
			n++
		}
	}
	return n
}

// Last returns the most recent notice, if any.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Warn(string)    {}
func (Discard) Error(string)   {}
