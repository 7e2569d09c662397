// Package session keeps the official-backend sessions obtained for each
// player and hands out authenticated clients for them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vitphire/flow-peacock/internal/logging"
	"github.com/vitphire/flow-peacock/internal/official"

	"go.uber.org/zap"
)

var (
	// ErrNoSession is returned when no session is stored for a player.
	ErrNoSession = errors.New("no official session stored for player")
	// ErrSessionExpired is returned when the stored access token has expired.
	ErrSessionExpired = errors.New("official session expired, log in again")
)

// Session represents a stored official-backend login for one player and game version.
type Session struct {
	PlayerID     string    `json:"playerId"`
	GameVersion  string    `json:"gameVersion"`
	AccessToken  string    `json:"accessToken"`
	AccessExpiry time.Time `json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
	LastUsed  time.Time `json:"-"`
}

// sessionFields drops Session's JSON methods so sessionJSON can embed it.
type sessionFields Session

// sessionJSON stores timestamps as unix milliseconds.
type sessionJSON struct {
	sessionFields
	AccessExpiry int64 `json:"accessExpiry,omitempty"`
	AddedAt      int64 `json:"addedAt"`
	UpdatedAt    int64 `json:"updatedAt"`
	LastUsed     int64 `json:"lastUsed,omitempty"`
}

func (s *Session) MarshalJSON() ([]byte, error) {
	aux := sessionJSON{
		sessionFields: sessionFields(*s),
		AddedAt:       s.CreatedAt.UnixMilli(),
		UpdatedAt:     s.UpdatedAt.UnixMilli(),
	}
	if !s.AccessExpiry.IsZero() {
		aux.AccessExpiry = s.AccessExpiry.UnixMilli()
	}
	if !s.LastUsed.IsZero() {
		aux.LastUsed = s.LastUsed.UnixMilli()
	}
	return json.Marshal(aux)
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var aux sessionJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*s = Session(aux.sessionFields)
	if aux.AccessExpiry > 0 {
		s.AccessExpiry = time.UnixMilli(aux.AccessExpiry)
	}
	if aux.AddedAt > 0 {
		s.CreatedAt = time.UnixMilli(aux.AddedAt)
	}
	if aux.UpdatedAt > 0 {
		s.UpdatedAt = time.UnixMilli(aux.UpdatedAt)
	}
	if aux.LastUsed > 0 {
		s.LastUsed = time.UnixMilli(aux.LastUsed)
	}
	return nil
}

// IsExpired checks if the access token is expired (with 60s buffer).
// A zero expiry means the token carries no known expiry.
func (s *Session) IsExpired(now time.Time) bool {
	if s.AccessToken == "" {
		return true
	}
	if s.AccessExpiry.IsZero() {
		return false
	}
	return now.Add(60 * time.Second).After(s.AccessExpiry)
}

func key(playerID, gameVersion string) string {
	return gameVersion + "/" + playerID
}

// storageV1 represents the disk format
type storageV1 struct {
	Version  int        `json:"version"`
	Sessions []*Session `json:"sessions"`
}

// Store manages stored sessions and builds authenticated clients for them.
type Store struct {
	filePath string
	sessions map[string]*Session

	httpClient       *http.Client
	maxResponseBytes int64
	logger           *zap.Logger
	now              func() time.Time

	mu sync.RWMutex
}

// NewStore opens the session file at path. A missing file yields an empty store.
func NewStore(path string, httpClient *http.Client, maxResponseBytes int64, logger *zap.Logger) (*Store, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger = logging.OrNop(logger)
	s := &Store{
		filePath:         path,
		sessions:         make(map[string]*Session),
		httpClient:       httpClient,
		maxResponseBytes: maxResponseBytes,
		logger:           logger,
		now:              time.Now,
	}

	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	return s, nil
}

// Load loads sessions from disk
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var storage storageV1
	if err := json.Unmarshal(data, &storage); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}
	if storage.Version != 1 {
		return fmt.Errorf("unknown session file version %d", storage.Version)
	}

	s.sessions = make(map[string]*Session, len(storage.Sessions))
	for _, sess := range storage.Sessions {
		if sess == nil || sess.PlayerID == "" {
			continue
		}
		s.sessions[key(sess.PlayerID, sess.GameVersion)] = sess
	}
	return nil
}

// Save saves sessions to disk
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveUnlocked()
}

func (s *Store) saveUnlocked() error {
	storage := storageV1{Version: 1, Sessions: s.listUnlocked()}

	data, err := json.MarshalIndent(storage, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(s.filePath, data, 0600)
}

// Put adds or replaces the session for its player and game version.
func (s *Store) Put(sess *Session) error {
	if sess == nil || sess.PlayerID == "" || sess.GameVersion == "" {
		return fmt.Errorf("session requires a player id and game version")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	k := key(sess.PlayerID, sess.GameVersion)
	if existing, ok := s.sessions[k]; ok {
		existing.AccessToken = sess.AccessToken
		existing.AccessExpiry = sess.AccessExpiry
		existing.UpdatedAt = now
		return s.saveUnlocked()
	}

	sess.CreatedAt = now
	sess.UpdatedAt = now
	s.sessions[k] = sess
	return s.saveUnlocked()
}

// Delete removes a stored session.
func (s *Store) Delete(playerID, gameVersion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(playerID, gameVersion)
	if _, ok := s.sessions[k]; !ok {
		return ErrNoSession
	}
	delete(s.sessions, k)
	return s.saveUnlocked()
}

// Get retrieves a session.
func (s *Store) Get(playerID, gameVersion string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key(playerID, gameVersion)]
	return sess, ok
}

// List returns all sessions ordered by game version then player id.
func (s *Store) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listUnlocked()
}

func (s *Store) listUnlocked() []*Session {
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GameVersion != out[j].GameVersion {
			return out[i].GameVersion < out[j].GameVersion
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

// Session returns an authenticated caller for the player's official session.
func (s *Store) Session(ctx context.Context, playerID, gameVersion string) (official.Caller, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess, ok := s.sessions[key(playerID, gameVersion)]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s (%s)", ErrNoSession, playerID, gameVersion)
	}
	now := s.now()
	if sess.IsExpired(now) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s (%s)", ErrSessionExpired, playerID, gameVersion)
	}
	sess.LastUsed = now
	token := sess.AccessToken
	s.mu.Unlock()

	return NewClient(s.httpClient, token, s.maxResponseBytes, s.logger), nil
}
