package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/entrhq/quatro-rpa/pkg/browser"
	"github.com/entrhq/quatro-rpa/pkg/enargas"
	"github.com/entrhq/quatro-rpa/pkg/logging"
	"github.com/entrhq/quatro-rpa/pkg/session"
	"github.com/entrhq/quatro-rpa/pkg/status"
)

const shutdownTimeout = 15 * time.Second

func (a *app) redisClient() (*redis.Client, error) {
	opts, err := redis.ParseURL(a.cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (a *app) redisPublisher(client redis.Cmdable) *status.Publisher {
	store := status.NewRedisStore(client, a.cfg.Redis.StatusKey)
	return status.NewPublisher(store, clockwork.NewRealClock(), a.cfg.Redis.StatusTTL, logging.NewLogger("status"))
}

// automation builds the workflow, the session manager driving launcher and
// the service that serializes jobs over them.
func (a *app) automation(launcher browser.Launcher, publisher *status.Publisher) (*enargas.Service, *session.Manager, error) {
	clock := clockwork.NewRealClock()

	workflow, err := enargas.NewWorkflow(enargas.WorkflowOptions{
		Portal:   a.cfg.Portal,
		Locators: a.cfg.Locators,
		Debug:    a.cfg.Debug,
		Clock:    clock,
		Logger:   logging.NewLogger("workflow"),
	})
	if err != nil {
		return nil, nil, err
	}

	manager := session.NewManager(session.Options{
		Launcher:        launcher,
		Publisher:       publisher,
		Clock:           clock,
		Logger:          logging.NewLogger("session"),
		IdleSeconds:     a.cfg.Browser.IdleSeconds,
		CooldownSeconds: a.cfg.Browser.CooldownSeconds,
		Logout:          workflow.Logout,
		LaunchOptions: browser.LaunchOptions{
			Viewport: &browser.Viewport{
				Width:  a.cfg.Browser.ViewportWidth,
				Height: a.cfg.Browser.ViewportHeight,
			},
			ActionTimeout: a.cfg.Browser.ActionTimeout,
		},
	})

	svc := enargas.NewService(manager, workflow, a.cfg.Browser.Headless, logging.NewLogger("enargas"))
	return svc, manager, nil
}

// shutdownSessions closes the live browser session, if any, even when ctx
// is already cancelled.
func shutdownSessions(ctx context.Context, m *session.Manager, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		log.Warnf("browser session did not close cleanly: %v", err)
	}
}

func newStatusServer(addr string, p *status.Publisher) *http.Server {
	r := mux.NewRouter()
	status.RegisterRoutes(r, p)
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serveStatus serves the status endpoint until ctx is cancelled.
func serveStatus(ctx context.Context, srv *http.Server, log *logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Infof("Status endpoint listening on %s%s", srv.Addr, status.RoutePath)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status endpoint failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
