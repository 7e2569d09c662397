package carryover

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vitphire/flow-peacock/internal/official"
)

// EvergreenCPDID is the contract progression data id probed on every run.
const EvergreenCPDID = "f8ec92c2-4fa2-471e-ae08-545480c746ee"

// Snapshot is every remote payload fetched for one run.
type Snapshot struct {
	Profile       *official.RemoteProfile
	PlayerProfile *official.PlayerProfileXP

	// Challenges is keyed by challenge id.
	Challenges map[string]official.ChallengeWithProgression
	Missions   int

	Hits map[official.HitCategory][]official.Hit

	// CPD holds at most the probed id.
	CPD map[string]map[string]json.RawMessage
}

func (s *Service) fetchSnapshot(ctx context.Context, api *official.API, playerID, gameVersion string) (*Snapshot, error) {
	snap := &Snapshot{
		Challenges: make(map[string]official.ChallengeWithProgression),
		Hits:       make(map[official.HitCategory][]official.Hit, len(official.HitCategories)),
		CPD:        make(map[string]map[string]json.RawMessage, 1),
	}

	var err error
	if snap.Profile, err = api.Profile(ctx, playerID); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if snap.PlayerProfile, err = api.PlayerProfile(ctx, playerID); err != nil {
		return nil, fmt.Errorf("failed to fetch player profile: %w", err)
	}

	if err := s.fetchChallenges(ctx, api, gameVersion, snap); err != nil {
		return nil, err
	}

	for _, category := range official.HitCategories {
		hits, err := api.HitsCategory(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", category, err)
		}
		snap.Hits[category] = hits
		s.logger.Debug("Fetched hit category",
			zap.String("category", string(category)), zap.Int("hits", len(hits)))
	}

	cpd, err := api.ContractProgressionData(ctx, EvergreenCPDID)
	if err != nil {
		s.logger.Warn("Contract progression data unavailable, continuing without it",
			zap.String("cpd_id", EvergreenCPDID), zap.Error(err))
	} else {
		snap.CPD[EvergreenCPDID] = cpd
	}

	return snap, nil
}

// fetchChallenges requests every mission's challenges concurrently and merges
// the results in mission id order.
func (s *Service) fetchChallenges(ctx context.Context, api *official.API, gameVersion string, snap *Snapshot) error {
	missionIDs, err := s.missions.MissionIDs(gameVersion)
	if err != nil {
		return fmt.Errorf("failed to list missions: %w", err)
	}
	snap.Missions = len(missionIDs)

	results := make([][]official.ChallengeWithProgression, len(missionIDs))

	eg, egCtx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		eg.SetLimit(s.concurrency)
	}
	for i, missionID := range missionIDs {
		i, missionID := i, missionID
		eg.Go(func() error {
			got, err := api.Challenges(egCtx, missionID)
			if err != nil {
				return fmt.Errorf("failed to fetch challenges for mission %s: %w", missionID, err)
			}
			results[i] = got
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, batch := range results {
		for _, c := range batch {
			snap.Challenges[c.ID()] = c
		}
	}
	s.logger.Debug("Fetched challenges",
		zap.Int("missions", len(missionIDs)), zap.Int("challenges", len(snap.Challenges)))
	return nil
}
