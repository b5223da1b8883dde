package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"posdash/internal/api"
	"posdash/internal/config"
	"posdash/internal/notify"
	"posdash/internal/session"
)

// app wires the collaborators shared by every command.
type app struct {
	cfg      *config.Config
	store    *session.Store
	session  *session.Manager
	client   *api.Client
	notifier notify.Notifier
	log      zerolog.Logger
}

// openApp loads configuration, restores the session and builds the API
// client that carries its credential.
func openApp(log zerolog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := session.Open(cfg.SessionFile)
	if err != nil {
		return nil, err
	}

	manager, err := session.NewManager(store)
	if err != nil {
		store.Close()
		return nil, err
	}

	log.Debug().
		Str("api_url", cfg.APIURL).
		Str("session_file", cfg.SessionFile).
		Msg("Application initialized")

	return &app{
		cfg:      cfg,
		store:    store,
		session:  manager,
		client:   api.NewClient(cfg.APIURL, cfg.APITimeout, manager),
		notifier: notify.NewConsole(os.Stdout),
		log:      log,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close session store")
	}
}

// requireSignIn fails before any backend call when nobody is signed in.
func (a *app) requireSignIn() error {
	if _, err := a.session.Require(); err != nil {
		return handleAPIError(err, a.log)
	}
	return nil
}

// commandContext creates a context canceled on interrupt signals
func commandContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
