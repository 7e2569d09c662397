// Package official talks to the first-party game backend. Each fetcher maps
// one endpoint onto a typed payload and fails on any non-success status.
package official

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vitphire/flow-peacock/internal/logging"
)

// Response is the raw result of one official call.
type Response struct {
	Status int
	Data   json.RawMessage
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Caller performs an authenticated call against a full endpoint URL.
type Caller interface {
	Call(ctx context.Context, endpoint string, useGet bool, body any) (*Response, error)
}

// StatusError reports a non-success response for a named request.
type StatusError struct {
	Request string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("official request %s failed with status %d", e.Request, e.Status)
	}
	return fmt.Sprintf("official request %s failed with status %d: %s", e.Request, e.Status, e.Body)
}

// IsStatus reports whether err carries a StatusError, returning it.
func IsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// TooLargeError reports a response body that exceeded the configured limit.
type TooLargeError struct {
	Endpoint string
	Limit    int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("official response from %s exceeded limit of %d bytes", e.Endpoint, e.Limit)
}

// IsTooLarge reports whether err carries a TooLargeError, returning it.
func IsTooLarge(err error) (*TooLargeError, bool) {
	var te *TooLargeError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

const maxErrorBody = 256

var hosts = map[string]string{
	"h1":   "pc-service.hitman.io",
	"h2":   "pc2-service.hitman.io",
	"h3":   "hm3-service.hitman.io",
	"scpc": "scpc-service.hitman.io",
}

// BaseURL resolves the official backend for a game version.
func BaseURL(gameVersion string) (string, error) {
	host, ok := hosts[gameVersion]
	if !ok {
		return "", fmt.Errorf("no official backend for game version %q", gameVersion)
	}
	return "https://" + host, nil
}

// Endpoint paths.
const (
	PathProfile             = "/authentication/api/userchannel/ProfileService/GetProfile"
	PathPlayerProfileXP     = "/authentication/api/userchannel/ProfileService/GetPlayerProfileXpData"
	PathChallenges          = "/authentication/api/userchannel/ChallengesService/GetActiveChallengesAndProgression"
	PathHitsCategory        = "/profiles/page/HitsCategory"
	PathProgressionData     = "/authentication/api/userchannel/ContractSessionsService/GetContractProgressionData"
	PathContractIDFromPubID = "/authentication/api/userchannel/ContractsService/GetContractIdFromPublicId"
	PathContractForPlay     = "/authentication/api/userchannel/ContractsService/GetForPlay2"
)

// ProfileExtensions are requested with every GetProfile call.
var ProfileExtensions = []string{
	"achievements",
	"friends",
	"gamepersistentdata",
	"opportunityprogression",
	"progression",
	"defaultloadout",
}

// API binds a Caller to one official backend.
type API struct {
	caller Caller
	base   string
	logger *zap.Logger
}

// NewAPI creates an API rooted at baseURL (scheme and host, no trailing slash).
func NewAPI(caller Caller, baseURL string) *API {
	return &API{caller: caller, base: strings.TrimRight(baseURL, "/"), logger: zap.NewNop()}
}

// WithLogger sets the logger for per-request logs and returns a.
func (a *API) WithLogger(logger *zap.Logger) *API {
	a.logger = logging.OrNop(logger)
	return a
}

func (a *API) do(ctx context.Context, request, path string, useGet bool, body, out any) error {
	resp, err := a.caller.Call(ctx, a.base+path, useGet, body)
	if err != nil {
		a.logger.Debug("Official request failed", zap.String("request", request), zap.Error(err))
		return fmt.Errorf("official request %s: %w", request, err)
	}
	if !resp.OK() {
		a.logger.Warn("Official request rejected",
			zap.String("request", request),
			zap.Int("status", resp.Status))
		snippet := string(resp.Data)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return &StatusError{Request: request, Status: resp.Status, Body: snippet}
	}
	a.logger.Debug("Official request",
		zap.String("request", request),
		zap.Int("status", resp.Status),
		zap.Int("bytes", len(resp.Data)))
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", request, err)
	}
	return nil
}

// Profile fetches the player's profile with its progression extensions.
func (a *API) Profile(ctx context.Context, profileID string) (*RemoteProfile, error) {
	body := map[string]any{"id": profileID, "extensions": ProfileExtensions}
	var out RemoteProfile
	if err := a.do(ctx, "GetProfile", PathProfile, false, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlayerProfile fetches the aggregate player-profile XP data.
func (a *API) PlayerProfile(ctx context.Context, profileID string) (*PlayerProfileXP, error) {
	body := map[string]string{"profileId": profileID}
	var out struct {
		PlayerProfileXp PlayerProfileXP `json:"PlayerProfileXp"`
	}
	if err := a.do(ctx, "GetPlayerProfileXpData", PathPlayerProfileXP, false, body, &out); err != nil {
		return nil, err
	}
	return &out.PlayerProfileXp, nil
}

// Challenges fetches challenge definitions and progression for one mission.
func (a *API) Challenges(ctx context.Context, missionID string) ([]ChallengeWithProgression, error) {
	body := map[string]string{"contractId": missionID, "difficultyLevel": "normal"}
	var out []ChallengeWithProgression
	if err := a.do(ctx, "GetActiveChallengesAndProgression("+missionID+")", PathChallenges, false, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HitsCategory fetches every page of a hit category, in page order.
func (a *API) HitsCategory(ctx context.Context, category HitCategory) ([]Hit, error) {
	var hits []Hit
	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("type", string(category))
		q.Set("mode", "dataonly")

		var out hitsCategoryResponse
		request := fmt.Sprintf("HitsCategory(%s, page %d)", category, page)
		if err := a.do(ctx, request, PathHitsCategory+"?"+q.Encode(), true, nil, &out); err != nil {
			return nil, err
		}
		// An empty page ends the walk even when the backend claims more.
		if len(out.Data.Data.Hits) == 0 {
			return hits, nil
		}
		hits = append(hits, out.Data.Data.Hits...)
		if !out.Data.Data.HasMore {
			return hits, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// ContractProgressionData fetches the CPD payload for one id.
func (a *API) ContractProgressionData(ctx context.Context, cpdID string) (map[string]json.RawMessage, error) {
	body := map[string]string{"contractProgressionDataId": cpdID}
	var out map[string]json.RawMessage
	if err := a.do(ctx, "GetContractProgressionData("+cpdID+")", PathProgressionData, false, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ContractIDFromPublicID resolves a public contract id to the contract's id.
func (a *API) ContractIDFromPublicID(ctx context.Context, publicID string) (string, error) {
	body := map[string]string{"publicContractId": publicID}
	var out string
	if err := a.do(ctx, "GetContractIdFromPublicId("+publicID+")", PathContractIDFromPubID, false, body, &out); err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("official backend has no contract for public id %s", publicID)
	}
	return out, nil
}

// ContractForPlay fetches the full contract JSON for a contract id.
func (a *API) ContractForPlay(ctx context.Context, contractID string) (json.RawMessage, error) {
	body := map[string]string{"id": contractID, "locale": "en"}
	var out struct {
		Contract json.RawMessage `json:"Contract"`
	}
	if err := a.do(ctx, "GetForPlay2("+contractID+")", PathContractForPlay, false, body, &out); err != nil {
		return nil, err
	}
	if len(out.Contract) == 0 || string(out.Contract) == "null" {
		return nil, fmt.Errorf("official backend returned no contract body for %s", contractID)
	}
	return out.Contract, nil
}
