package enargas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/quatro-rpa/pkg/logging"
	"github.com/entrhq/quatro-rpa/pkg/session"
)

// ErrMissingCredentials is returned when the username or password is empty.
var ErrMissingCredentials = errors.New("missing portal credentials")

// Sessions is the part of session.Manager the service needs.
type Sessions interface {
	Acquire(ctx context.Context, headless bool) (*session.Session, error)
	BeginJob(ctx context.Context, s *session.Session)
	EndJob(ctx context.Context, s *session.Session)
	CloseAndCooldown(ctx context.Context, s *session.Session, reason string)
}

// Service runs one automation at a time against the shared session.
type Service struct {
	sessions Sessions
	workflow *Workflow
	headless bool
	log      *logging.Logger

	// held from Acquire to EndJob so only one workflow uses the page
	jobMu sync.Mutex
}

// NewService creates a service. headless is used when a call does not
// choose a mode.
func NewService(sessions Sessions, workflow *Workflow, headless bool, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewLogger("enargas")
	}
	return &Service{
		sessions: sessions,
		workflow: workflow,
		headless: headless,
		log:      log,
	}
}

// RunAutomation checks one plate. An error means the run never reached the
// portal: the plate is invalid, credentials are missing or no browser
// session could be obtained. Everything that happens on the portal is
// reported through the Outcome.
func (s *Service) RunAutomation(ctx context.Context, identifier string, creds Credentials, headless *bool) (Outcome, error) {
	plate, err := ParsePlate(identifier)
	if err != nil {
		return Outcome{}, err
	}
	if creds.Username == "" || creds.Password == "" {
		return Outcome{}, ErrMissingCredentials
	}

	mode := s.headless
	if headless != nil {
		mode = *headless
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	sess, err := s.sessions.Acquire(ctx, mode)
	if err != nil {
		return Outcome{}, fmt.Errorf("acquire browser session: %w", err)
	}

	s.sessions.BeginJob(ctx, sess)
	defer s.sessions.EndJob(context.WithoutCancel(ctx), sess)

	start := time.Now()
	out := s.workflow.Run(ctx, sess.Page(), plate, creds)

	if out.RecyclesSession() {
		s.sessions.CloseAndCooldown(ctx, sess, out.Kind.String())
	}

	switch out.Kind {
	case KindSuccess:
		s.log.Infof("Plate %s exported as %s (%d bytes) in %s", plate, out.Filename, len(out.PDF), time.Since(start).Round(time.Millisecond))
	case KindUnrecognized:
		s.log.Warnf("Plate %s unrecognized result: %s", plate, out.Detail)
	default:
		s.log.Infof("Plate %s: %s", plate, out.Kind)
	}
	return out, nil
}
