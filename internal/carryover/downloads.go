package carryover

import (
	"context"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/vitphire/flow-peacock/internal/official"
	"github.com/vitphire/flow-peacock/internal/profile"
)

var publicIDPattern = regexp.MustCompile(`^\d{3}-?\d{7}-?\d{2}$`)

// ValidPublicID reports whether id looks like a public contract id.
func ValidPublicID(id string) bool {
	return publicIDPattern.MatchString(id)
}

// DownloadStats counts what happened to each considered hit.
type DownloadStats struct {
	Considered int
	Known      int
	Invalid    int
	Downloaded int
	Failed     int
	Skipped    int // missing but not downloaded, see Deps.SkipDownloads
}

// downloadContracts records the enabled hit lists on the profile and
// downloads every contract not yet stored locally. Individual failures are
// logged and skipped.
func (s *Service) downloadContracts(ctx context.Context, p *profile.UserProfile, snap *Snapshot, playerID, gameVersion string) (DownloadStats, error) {
	var stats DownloadStats
	var candidates []official.Hit

	if s.flags.DownloadContractHistory {
		history := snap.Hits[official.CategoryHistory]
		if limit := s.flags.DownloadContractHistoryLimit; limit > 0 && len(history) > limit {
			history = history[:limit]
		}
		recordPlayed(p, history)
		candidates = append(candidates, history...)
	}
	if s.flags.DownloadMyContracts {
		authored := snap.Hits[official.CategoryMyContracts]
		recordPlayed(p, authored)
		candidates = append(candidates, authored...)
	}
	if s.flags.DownloadFavorites {
		favorites := snap.Hits[official.CategoryFavorites]
		for _, hit := range favorites {
			if id := hit.ContractID(); id != "" {
				p.Extensions.PeacockFavoriteContracts = appendUnique(p.Extensions.PeacockFavoriteContracts, id)
			}
		}
		candidates = append(candidates, favorites...)
	}

	attempted := make(map[string]bool, len(candidates))
	for _, hit := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		id := hit.ContractID()
		if id == "" || attempted[id] {
			continue
		}
		attempted[id] = true
		stats.Considered++

		if s.contracts.Resolve(ctx, id) {
			stats.Known++
			continue
		}

		publicID := hit.PublicID()
		if !ValidPublicID(publicID) {
			stats.Invalid++
			s.logger.Info("Skipping contract with malformed public id",
				zap.String("contract_id", id), zap.String("public_id", publicID))
			continue
		}

		if s.skip {
			stats.Skipped++
			continue
		}

		if err := s.downloader.Download(ctx, playerID, publicID, gameVersion); err != nil {
			stats.Failed++
			s.logger.Warn("Contract download failed",
				zap.String("contract_id", id), zap.String("public_id", publicID), zap.Error(err))
			continue
		}
		stats.Downloaded++
	}
	return stats, nil
}

func recordPlayed(p *profile.UserProfile, hits []official.Hit) {
	for _, hit := range hits {
		id := hit.ContractID()
		if id == "" {
			continue
		}
		data := hit.UserCentricContract.Data
		p.Extensions.PeacockPlayedContracts[id] = profile.PlayedContract{
			LastPlayedAt: playedAtMillis(data.LastPlayedAt),
			Completed:    data.Completed,
		}
	}
}

func playedAtMillis(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
