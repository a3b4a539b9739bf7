package session

import (
	"sync/atomic"
	"time"

	"github.com/entrhq/quatro-rpa/pkg/browser"
)

// Session is one live browser with its logged-in portal page.
type Session struct {
	ID         string
	Generation uint64
	Headless   bool
	CreatedAt  time.Time

	instance browser.Instance
	lastUsed atomic.Int64

	// guarded by Manager.mu
	running bool
}

// Page returns the main page of the session.
func (s *Session) Page() browser.Page {
	return s.instance.Page()
}

// LastUsedAt returns when a job last started or finished on the session.
func (s *Session) LastUsedAt() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}
