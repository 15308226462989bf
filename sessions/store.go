package sessions

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/storage"
)

// Store owns the persisted session. Reads always go to the backing KV; nothing is cached.
type Store struct {
	kv     storage.KV
	logger zerolog.Logger
	lock   sync.Mutex // serializes compound mutations
}

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(kv storage.KV, options ...StoreOption) *Store {
	s := &Store{
		kv:     kv,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "session-store").Logger()
	return s
}

// Save persists a freshly established session. If any write fails the store is cleared
// so that no partial session survives.
func (s *Store) Save(session Session) error {
	if session.AccessToken == "" || session.RefreshToken == "" {
		return ErrIncompleteSession
	}

	var userData []byte
	if session.User != nil {
		var err error
		if userData, err = json.Marshal(session.User); err != nil {
			return err
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	err := s.kv.Write(AccessTokenKey, session.AccessToken)
	if err == nil {
		err = s.kv.Write(RefreshTokenKey, session.RefreshToken)
	}
	if err == nil && userData != nil {
		err = s.kv.Write(UserDataKey, string(userData))
	}
	if err == nil && userData == nil {
		err = s.kv.Delete(UserDataKey)
	}
	if err != nil {
		if clearErr := s.clear(); clearErr != nil {
			s.logger.Error().Err(clearErr).Msg("failed to roll back partial session")
		}
		return err
	}
	return nil
}

// Clear removes the whole session. Every key is attempted even if an earlier delete fails.
func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.clear()
}

// ClearInvalidTokens tears the session down after the backend rejected the refresh token.
func (s *Store) ClearInvalidTokens() error {
	s.logger.Warn().Msg("refresh token rejected, clearing session")
	return s.Clear()
}

func (s *Store) clear() error {
	return errors.Join(
		s.kv.Delete(AccessTokenKey),
		s.kv.Delete(RefreshTokenKey),
		s.kv.Delete(UserDataKey),
	)
}

// ApplyRefreshResult stores a refreshed access token, and the refresh token only when the
// backend rotated it. It writes nothing and returns ErrNoSession when no refresh token is stored,
// so a logout that raced the refresh is not undone.
func (s *Store) ApplyRefreshResult(accessToken, refreshToken string) error {
	return s.apply("", accessToken, refreshToken)
}

// ApplyRefreshResultFor is ApplyRefreshResult for a refresh made with usedRefresh. It also writes
// nothing when the stored refresh token is no longer usedRefresh, e.g. after a logout and a new
// login while the refresh was in flight.
func (s *Store) ApplyRefreshResultFor(usedRefresh, accessToken, refreshToken string) error {
	if usedRefresh == "" {
		return ErrNoSession
	}
	return s.apply(usedRefresh, accessToken, refreshToken)
}

func (s *Store) apply(usedRefresh, accessToken, refreshToken string) error {
	if accessToken == "" {
		return ErrIncompleteSession
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	stored, ok := s.read(RefreshTokenKey)
	if !ok || (usedRefresh != "" && stored != usedRefresh) {
		return ErrNoSession
	}

	if err := s.kv.Write(AccessTokenKey, accessToken); err != nil {
		return err
	}
	if refreshToken != "" {
		if err := s.kv.Write(RefreshTokenKey, refreshToken); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AccessToken() (string, bool) {
	return s.read(AccessTokenKey)
}

func (s *Store) RefreshToken() (string, bool) {
	return s.read(RefreshTokenKey)
}

// CurrentUser returns the stored profile. Data that does not parse (for instance written by an
// incompatible older version) is reported as absent.
func (s *Store) CurrentUser() (*UserProfile, bool) {
	raw, ok := s.read(UserDataKey)
	if !ok || strings.TrimSpace(raw) == "null" {
		return nil, false
	}
	var user UserProfile
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Debug().Err(err).Msg("ignoring unparseable user_data")
		return nil, false
	}
	return &user, true
}

// IsAuthenticated reports whether an access token is present. It does not check expiry.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.AccessToken()
	return ok
}

// Current returns the stored session, or false when there is none
func (s *Store) Current() (Session, bool) {
	access, ok := s.AccessToken()
	if !ok {
		return Session{}, false
	}
	refresh, _ := s.RefreshToken()
	user, _ := s.CurrentUser()
	return Session{AccessToken: access, RefreshToken: refresh, User: user}, true
}

func (s *Store) read(key string) (string, bool) {
	v, ok, err := s.kv.Read(key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("session read failed, treating as unset")
		return "", false
	}
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
