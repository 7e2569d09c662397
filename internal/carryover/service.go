// Package carryover migrates a player's progression from the official backend
// into a local profile. One run fetches every remote payload, merges them into
// a fresh default profile and then downloads contracts the player has touched.
package carryover

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vitphire/flow-peacock/internal/challenges"
	"github.com/vitphire/flow-peacock/internal/config"
	"github.com/vitphire/flow-peacock/internal/logging"
	"github.com/vitphire/flow-peacock/internal/official"
	"github.com/vitphire/flow-peacock/internal/profile"
	"github.com/vitphire/flow-peacock/internal/statemachine"
)

// SessionProvider hands out an authenticated caller for a player.
type SessionProvider interface {
	Session(ctx context.Context, playerID, gameVersion string) (official.Caller, error)
}

// ProfileDefaults builds a fresh profile for a game version.
type ProfileDefaults interface {
	Default(gameVersion string) (*profile.UserProfile, error)
}

// ContractStore reports whether a contract is already available locally.
type ContractStore interface {
	Resolve(ctx context.Context, id string) bool
}

// ContractDownloader fetches one contract by public id.
type ContractDownloader interface {
	Download(ctx context.Context, playerID, publicID, gameVersion string) error
}

// ChallengeRegistry looks up challenge definitions.
type ChallengeRegistry interface {
	ChallengeByID(id, gameVersion string) (*challenges.Challenge, bool)
}

// Evaluator runs one event through a challenge state machine.
type Evaluator interface {
	HandleEvent(def statemachine.Definition, context map[string]any, value any, opts statemachine.Options) (statemachine.Result, error)
}

// MissionRegistry lists the mission ids of a game version.
type MissionRegistry interface {
	MissionIDs(gameVersion string) ([]string, error)
}

// Deps wires a Service.
type Deps struct {
	Sessions   SessionProvider
	Defaults   ProfileDefaults
	Contracts  ContractStore
	Downloader ContractDownloader
	Challenges ChallengeRegistry
	Evaluator  Evaluator
	Missions   MissionRegistry

	// BaseURL resolves the official backend for a game version.
	// Defaults to official.BaseURL.
	BaseURL func(gameVersion string) (string, error)

	Flags config.CarryoverConfig

	// ChallengeConcurrency caps parallel challenge requests; 0 means no cap.
	ChallengeConcurrency int

	Logger *zap.Logger

	// OfficialLogger receives per-request logs from the official fetchers.
	OfficialLogger *zap.Logger

	// SkipDownloads counts missing contracts without fetching or storing them.
	SkipDownloads bool
}

// Service runs carryovers.
type Service struct {
	sessions    SessionProvider
	defaults    ProfileDefaults
	contracts   ContractStore
	downloader  ContractDownloader
	challenges  ChallengeRegistry
	evaluator   Evaluator
	missions    MissionRegistry
	baseURL     func(string) (string, error)
	flags       config.CarryoverConfig
	concurrency int
	skip        bool
	logger      *zap.Logger
	apiLogger   *zap.Logger
}

// NewService validates deps and creates a Service.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Sessions == nil:
		return nil, fmt.Errorf("carryover: session provider is required")
	case deps.Defaults == nil:
		return nil, fmt.Errorf("carryover: profile defaults are required")
	case deps.Contracts == nil:
		return nil, fmt.Errorf("carryover: contract store is required")
	case deps.Downloader == nil:
		return nil, fmt.Errorf("carryover: contract downloader is required")
	case deps.Challenges == nil:
		return nil, fmt.Errorf("carryover: challenge registry is required")
	case deps.Evaluator == nil:
		return nil, fmt.Errorf("carryover: state machine evaluator is required")
	case deps.Missions == nil:
		return nil, fmt.Errorf("carryover: mission registry is required")
	}

	baseURL := deps.BaseURL
	if baseURL == nil {
		baseURL = official.BaseURL
	}
	logger := logging.OrNop(deps.Logger)

	return &Service{
		sessions:    deps.Sessions,
		defaults:    deps.Defaults,
		contracts:   deps.Contracts,
		downloader:  deps.Downloader,
		challenges:  deps.Challenges,
		evaluator:   deps.Evaluator,
		missions:    deps.Missions,
		baseURL:     baseURL,
		flags:       deps.Flags,
		concurrency: deps.ChallengeConcurrency,
		skip:        deps.SkipDownloads,
		logger:      logger,
		apiLogger:   logging.OrNop(deps.OfficialLogger),
	}, nil
}

// Report summarizes one carryover run.
type Report struct {
	Profile    *profile.UserProfile
	Missions   int
	Challenges int
	Hits       map[official.HitCategory]int
	CPD        bool
	Downloads  DownloadStats
}

// CarryOverUserData fetches the player's official progression and returns it
// merged into a fresh local profile. The caller persists the result.
func (s *Service) CarryOverUserData(ctx context.Context, playerID, gameVersion string) (*profile.UserProfile, error) {
	report, err := s.CarryOver(ctx, playerID, gameVersion)
	if err != nil {
		return nil, err
	}
	return report.Profile, nil
}

// CarryOver is CarryOverUserData with run statistics.
func (s *Service) CarryOver(ctx context.Context, playerID, gameVersion string) (*Report, error) {
	caller, err := s.sessions.Session(ctx, playerID, gameVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to get session for %s: %w", playerID, err)
	}
	base, err := s.baseURL(gameVersion)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Starting carryover",
		zap.String("player_id", playerID),
		zap.String("game_version", gameVersion),
		zap.String("backend", base))

	snap, err := s.fetchSnapshot(ctx, official.NewAPI(caller, base).WithLogger(s.apiLogger), playerID, gameVersion)
	if err != nil {
		return nil, err
	}

	p, err := s.defaults.Default(gameVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to load default profile: %w", err)
	}
	p.Id = playerID

	if err := Merge(p, snap); err != nil {
		return nil, err
	}
	if err := s.reconstructDiscoveryChallenge(p, snap, gameVersion); err != nil {
		return nil, err
	}

	stats, err := s.downloadContracts(ctx, p, snap, playerID, gameVersion)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Profile:    p,
		Missions:   snap.Missions,
		Challenges: len(snap.Challenges),
		Hits:       make(map[official.HitCategory]int, len(snap.Hits)),
		CPD:        len(snap.CPD) > 0,
		Downloads:  stats,
	}
	for cat, hits := range snap.Hits {
		report.Hits[cat] = len(hits)
	}

	s.logger.Info("Carryover complete",
		zap.String("player_id", playerID),
		zap.Int("challenges", report.Challenges),
		zap.Int("downloaded", stats.Downloaded),
		zap.Int("download_failures", stats.Failed))
	return report, nil
}
