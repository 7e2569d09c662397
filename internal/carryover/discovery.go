package carryover

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/vitphire/flow-peacock/internal/challenges"
	"github.com/vitphire/flow-peacock/internal/profile"
	"github.com/vitphire/flow-peacock/internal/statemachine"
)

// DiscoveryChallengeID is the island discovery challenge, which the official
// backend does not track.
const DiscoveryChallengeID = "aa1bb0a0-4db8-4ac1-a2e4-0d5a6f1ec2cb"

// DiscoveryAreaIDs are the areas of the discovery challenge, in replay order.
// A definition whose context carries an "AreaIDs" list replaces them.
var DiscoveryAreaIDs = []string{
	"fa7b2877-7a82-4a48-9c8b-1d58b6c0e6b2",
	"2f3c6b7a-4f5e-4d1c-8b9a-0e1f2a3b4c5d",
	"9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d",
	"61c4d2e8-3b5a-4f7c-9d1e-8a2b4c6d8e0f",
	"b27e5d9c-8a1f-4c3b-9e7d-2f6a8c4b1e93",
}

const (
	areaDiscoveredEvent = "AreaDiscovered"
	successState        = "Success"
)

// reconstructDiscoveryChallenge replays one AreaDiscovered event per area the
// player has discovered and stores the resulting progress.
func (s *Service) reconstructDiscoveryChallenge(p *profile.UserProfile, snap *Snapshot, gameVersion string) error {
	challenge, ok := s.challenges.ChallengeByID(DiscoveryChallengeID, gameVersion)
	if !ok {
		s.logger.Warn("Discovery challenge definition not found, skipping",
			zap.String("challenge_id", DiscoveryChallengeID),
			zap.String("game_version", gameVersion))
		return nil
	}

	discovered := snap.Profile.Extensions.GamePersistentData.PersistentBool
	state := StartState
	context := challenge.Definition.Context

	for _, area := range discoveryAreas(challenge) {
		if !discovered[area] {
			continue
		}
		res, err := s.evaluator.HandleEvent(challenge.Definition, context, map[string]string{"RepositoryId": area}, statemachine.Options{
			EventName:    areaDiscoveredEvent,
			CurrentState: state,
		})
		if err != nil {
			return fmt.Errorf("failed to replay area %s for challenge %s: %w", area, DiscoveryChallengeID, err)
		}
		state, context = res.State, res.Context
	}

	raw, err := json.Marshal(context)
	if err != nil {
		return fmt.Errorf("failed to encode challenge %s state: %w", DiscoveryChallengeID, err)
	}

	completed := state == successState
	p.Extensions.ChallengeProgression[DiscoveryChallengeID] = profile.ChallengeProgress{
		Ticked:       completed,
		Completed:    completed,
		CurrentState: state,
		State:        raw,
	}
	s.logger.Debug("Reconstructed discovery challenge",
		zap.String("state", state), zap.Bool("completed", completed))
	return nil
}

// discoveryAreas prefers the area list shipped with the definition.
func discoveryAreas(c *challenges.Challenge) []string {
	raw, ok := c.Definition.Context["AreaIDs"].([]any)
	if !ok || len(raw) == 0 {
		return DiscoveryAreaIDs
	}
	areas := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok && id != "" {
			areas = append(areas, id)
		}
	}
	if len(areas) == 0 {
		return DiscoveryAreaIDs
	}
	return areas
}
