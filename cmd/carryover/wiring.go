package main

import (
	"fmt"
	"path/filepath"

	"github.com/vitphire/flow-peacock/internal/carryover"
	"github.com/vitphire/flow-peacock/internal/challenges"
	"github.com/vitphire/flow-peacock/internal/config"
	"github.com/vitphire/flow-peacock/internal/contracts"
	"github.com/vitphire/flow-peacock/internal/logging"
	"github.com/vitphire/flow-peacock/internal/missions"
	"github.com/vitphire/flow-peacock/internal/official"
	"github.com/vitphire/flow-peacock/internal/profile"
	"github.com/vitphire/flow-peacock/internal/session"
	"github.com/vitphire/flow-peacock/internal/statemachine"
)

// baseURLResolver prefers configured overrides over the built-in hosts.
func baseURLResolver(c *config.Config) func(string) (string, error) {
	return func(gameVersion string) (string, error) {
		if url, ok := c.BaseURLOverride(gameVersion); ok {
			return url, nil
		}
		return official.BaseURL(gameVersion)
	}
}

// openSessions opens the session store with the shared official HTTP client.
func openSessions(c *config.Config, l *logging.Loggers) (*session.Store, error) {
	httpClient, err := session.NewHTTPClient(c.GetOfficialTimeout())
	if err != nil {
		return nil, err
	}
	return session.NewStore(c.Sessions.Path, httpClient, c.Official.MaxResponseBytes, l.For(logging.CategorySession))
}

// runtime is everything a carryover run needs.
type runtime struct {
	service    *carryover.Service
	sessions   *session.Store
	contracts  *contracts.Store
	challenges *challenges.Registry
}

// openRuntime wires a carryover service. Close releases the contract store.
// A dry run leaves the contract store untouched.
func openRuntime(c *config.Config, l *logging.Loggers, dryRun bool) (*runtime, error) {
	sessions, err := openSessions(c, l)
	if err != nil {
		return nil, err
	}

	store, err := contracts.NewStore(c.Contracts.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open contract store: %w", err)
	}

	registry := challenges.NewRegistry(c.Challenges.Dir, l.For(logging.CategoryChallenges))
	resolve := baseURLResolver(c)
	svc, err := carryover.NewService(carryover.Deps{
		Sessions:             sessions,
		Defaults:             profile.NewDefaults(filepath.Join(c.UserData.Dir, "defaults")),
		Contracts:            store,
		Downloader:           contracts.NewDownloader(sessions, resolve, store, l.For(logging.CategoryContracts)),
		Challenges:           registry,
		Evaluator:            statemachine.NewEvaluator(),
		Missions:             missions.NewRegistryWithDir(filepath.Join(c.UserData.Dir, "missions")),
		BaseURL:              resolve,
		Flags:                c.Carryover,
		ChallengeConcurrency: c.Official.ChallengeConcurrency,
		Logger:               l.For(logging.CategoryCarryover),
		OfficialLogger:       l.For(logging.CategoryOfficial),
		SkipDownloads:        dryRun,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return &runtime{service: svc, sessions: sessions, contracts: store, challenges: registry}, nil
}

func (r *runtime) Close() error {
	return r.contracts.Close()
}
