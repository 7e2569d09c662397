package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vitphire/flow-peacock/internal/logging"
	"github.com/vitphire/flow-peacock/internal/official"
)

// SessionProvider hands out authenticated callers.
type SessionProvider interface {
	Session(ctx context.Context, playerID, gameVersion string) (official.Caller, error)
}

// Downloader fetches contracts from the official backend into a Store.
type Downloader struct {
	sessions SessionProvider
	baseURL  func(gameVersion string) (string, error)
	store    *Store
	logger   *zap.Logger
	now      func() time.Time
}

// NewDownloader creates a downloader writing into store.
func NewDownloader(sessions SessionProvider, baseURL func(string) (string, error), store *Store, logger *zap.Logger) *Downloader {
	logger = logging.OrNop(logger)
	return &Downloader{
		sessions: sessions,
		baseURL:  baseURL,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// NormalizePublicID strips the dashes from a public contract id.
func NormalizePublicID(publicID string) string {
	return strings.ReplaceAll(strings.TrimSpace(publicID), "-", "")
}

// Download resolves a public id to a contract and stores its definition.
func (d *Downloader) Download(ctx context.Context, playerID, publicID, gameVersion string) error {
	caller, err := d.sessions.Session(ctx, playerID, gameVersion)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	base, err := d.baseURL(gameVersion)
	if err != nil {
		return err
	}
	api := official.NewAPI(caller, base).WithLogger(d.logger)

	publicID = NormalizePublicID(publicID)
	id, err := api.ContractIDFromPublicID(ctx, publicID)
	if err != nil {
		return err
	}

	body, err := api.ContractForPlay(ctx, id)
	if err != nil {
		return err
	}

	var envelope struct {
		Metadata official.ContractMetadata `json:"Metadata"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode contract %s: %w", id, err)
	}
	meta := envelope.Metadata
	if meta.Id != "" && meta.Id != id {
		d.logger.Warn("Contract metadata id differs from resolved id",
			zap.String("resolved", id), zap.String("metadata", meta.Id))
	}

	c := &Contract{
		ID:           id,
		PublicID:     publicID,
		Title:        meta.Title,
		Location:     meta.Location,
		Type:         meta.Type,
		CreatorID:    meta.CreatorUserId,
		GameVersion:  gameVersion,
		Body:         body,
		DownloadedAt: d.now(),
	}
	if err := d.store.Put(ctx, c); err != nil {
		return err
	}

	d.logger.Info("Downloaded contract",
		zap.String("contract_id", id),
		zap.String("public_id", publicID),
		zap.String("title", meta.Title))
	return nil
}
