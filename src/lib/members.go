package lib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"tix/src/types"

	"github.com/redis/go-redis/v9"
)

// ProfileSource resolves a buyer's profile for eligibility checks.
// Implementations must return an error rather than a partial guess
// when profile data cannot be fetched; the validator fails closed.
type ProfileSource interface {
	FetchProfile(ctx context.Context, userID uint) (types.Profile, error)
}

var profileSource ProfileSource

func GetProfileSource() ProfileSource {
	if profileSource != nil {
		return profileSource
	}
	profileSource = &MemberDirectory{
		BaseURL: os.Getenv("MEMBERS_API_URL"),
		Client:  &http.Client{Timeout: 10 * time.Second},
		TTL:     15 * time.Minute,
	}
	return profileSource
}

// NewProfileSource Replace profile source with custom implementation
func NewProfileSource(p ProfileSource) ProfileSource {
	profileSource = p
	return profileSource
}

// MemberDirectory fetches buyer profiles from the external membership
// API and caches them in redis.
type MemberDirectory struct {
	BaseURL string
	Client  *http.Client
	TTL     time.Duration
}

func (m *MemberDirectory) cacheKey(userID uint) string {
	return fmt.Sprintf("member:%d", userID)
}

func (m *MemberDirectory) FetchProfile(ctx context.Context, userID uint) (types.Profile, error) {
	var profile types.Profile

	rdb := GetRedisClient()
	if rdb != nil {
		cached, err := rdb.Get(ctx, m.cacheKey(userID)).Result()
		if err == nil {
			if err := json.Unmarshal([]byte(cached), &profile); err == nil {
				return profile, nil
			}
		} else if err != redis.Nil {
			log.Printf("[members] Error reading cache for user %d: %s\n", userID, err.Error())
		}
	}

	if m.BaseURL == "" {
		return profile, errors.New("members api is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/members/%d", m.BaseURL, userID), nil)
	if err != nil {
		return profile, err
	}
	res, err := m.Client.Do(req)
	if err != nil {
		return profile, fmt.Errorf("error fetching profile for user %d: %w", userID, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return profile, fmt.Errorf("members api returned %d for user %d", res.StatusCode, userID)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return profile, err
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		return profile, fmt.Errorf("error decoding profile for user %d: %w", userID, err)
	}
	profile.UserID = userID

	if rdb != nil {
		if err := rdb.Set(ctx, m.cacheKey(userID), string(body), m.TTL).Err(); err != nil {
			log.Printf("[members] Error caching profile for user %d: %s\n", userID, err.Error())
		}
	}
	return profile, nil
}

// StaticProfileSource serves profiles from memory, used by tests.
type StaticProfileSource struct {
	Profiles map[uint]types.Profile
	Err      error
}

func (s *StaticProfileSource) FetchProfile(ctx context.Context, userID uint) (types.Profile, error) {
	if s.Err != nil {
		return types.Profile{}, s.Err
	}
	p, ok := s.Profiles[userID]
	if !ok {
		return types.Profile{}, fmt.Errorf("no profile for user %d", userID)
	}
	return p, nil
}
