// Package scholar scrapes Google Scholar result and profile pages
// through a pluggable Browser. It is the secondary source: author
// profiles here carry the self-maintained h-index, and citation-cluster
// IDs allow fetching citing papers with no text search at all.
package scholar

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/matsen/scholarimpact/internal/source"
)

// Browser is the navigation capability the scraper runs on. Real
// implementations drive an actual browser; tests return canned HTML.
type Browser interface {
	// Navigate loads url and returns the rendered page HTML.
	Navigate(ctx context.Context, url string) (string, error)
	// Close releases the underlying browser resources.
	Close() error
}

// State is the scraping session lifecycle state.
type State int

const (
	// StateClosed means no session is held.
	StateClosed State = iota
	// StateOpen means the session is acquired and navigable.
	StateOpen
	// StateBlocked means the source detected automation mid-session.
	StateBlocked
	// StateAwaitingManualResolution means a block was reported and the
	// session waits for a human to clear it before reopening.
	StateAwaitingManualResolution
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateBlocked:
		return "blocked"
	case StateAwaitingManualResolution:
		return "awaiting_manual_resolution"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session owns the single shared browser resource for one analysis run.
// It is acquired once per run, navigations are serialized, and a
// detected block flips the state machine rather than silently
// restarting the browser.
type Session struct {
	browser Browser
	log     logrus.FieldLogger

	mu    sync.Mutex
	state State
}

// NewSession wraps a browser in a closed session.
func NewSession(b Browser, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{browser: b, log: log, state: StateClosed}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Acquire opens the session. Acquiring an already-open session is an
// error; a session awaiting manual resolution stays unusable until
// Resolve is called.
func (s *Session) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		s.state = StateOpen
		return nil
	case StateOpen:
		return fmt.Errorf("session already acquired")
	default:
		return fmt.Errorf("%w: session is %s", source.ErrBlocked, s.state)
	}
}

// Release closes an open session. Releasing a blocked session moves it
// to awaiting manual resolution instead, preserving the block signal.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateBlocked {
		s.state = StateAwaitingManualResolution
		return
	}
	if s.state == StateOpen {
		s.state = StateClosed
	}
}

// NotifyBlocked records that the source refused service (CAPTCHA or
// equivalent). Further navigations fail until Resolve.
func (s *Session) NotifyBlocked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateOpen {
		s.log.Warn("scraping session blocked")
		s.state = StateBlocked
	}
}

// Resolve clears a block after manual intervention, returning the
// session to closed so it can be acquired again.
func (s *Session) Resolve() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateBlocked || s.state == StateAwaitingManualResolution {
		s.state = StateClosed
	}
}

// Close releases the browser regardless of state.
func (s *Session) Close() error {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	return s.browser.Close()
}

// navigate serializes page loads through the single browser and runs
// block detection on every response.
func (s *Session) navigate(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return "", fmt.Errorf("%w: session is %s", source.ErrBlocked, s.state)
	}
	html, err := s.browser.Navigate(ctx, url)
	if err != nil {
		return "", &source.FetchError{Source: Label, Operation: "navigate", Err: err}
	}
	if looksBlocked(html) {
		s.log.Warn("scraping session blocked")
		s.state = StateBlocked
		return "", fmt.Errorf("%w: block page detected", source.ErrBlocked)
	}
	return html, nil
}

// looksBlocked recognizes the interstitials Scholar serves to suspected
// bots.
func looksBlocked(html string) bool {
	lower := strings.ToLower(html)
	return strings.Contains(lower, "gs_captcha") ||
		strings.Contains(lower, "id=\"captcha") ||
		strings.Contains(lower, "unusual traffic from your computer network")
}
