// Package auth owns the console session: login, restore at startup, refresh
// and teardown. It is the only writer of the persisted session record.
package auth

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/HARD953/distribut-sub001/apiclient"
	"github.com/HARD953/distribut-sub001/internal/errors"
	"github.com/HARD953/distribut-sub001/sessions"
	"github.com/HARD953/distribut-sub001/token"
	"github.com/HARD953/distribut-sub001/users"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	TokenEndpoint   = "/token/"
	RefreshEndpoint = "/token/refresh/"

	defaultUserEndpoint  = "/users/"
	defaultProbeEndpoint = "/dashboard/"
)

type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

var (
	_ apiclient.TokenSource = (*SessionStore)(nil)
	_ oauth2.TokenSource    = (*SessionStore)(nil)
)

// SessionStore holds the in-memory copy of the session and mirrors every
// change to its repo.
type SessionStore struct {
	repo          sessions.Repo
	api           *apiclient.Client
	logger        zerolog.Logger
	userEndpoint  string
	probeEndpoint string
	nowTime       func() time.Time

	mu         sync.RWMutex
	record     *sessions.Record
	state      State
	generation uint64 // Incremented whenever a session starts or ends

	listenersLock sync.RWMutex
	listeners     []func(sessions.EndReason)
}

type SessionStoreOption func(*SessionStore)

func WithLogger(logger zerolog.Logger) SessionStoreOption {
	return func(s *SessionStore) {
		s.logger = logger
	}
}

// WithUserEndpoint sets the path answering with the current user.
func WithUserEndpoint(path string) SessionStoreOption {
	return func(s *SessionStore) {
		if path != "" {
			s.userEndpoint = path
		}
	}
}

// WithProbeEndpoint sets the protected path used to validate a restored token.
func WithProbeEndpoint(path string) SessionStoreOption {
	return func(s *SessionStore) {
		if path != "" {
			s.probeEndpoint = path
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		s.nowTime = nowFunc
	}
}

// NewSessionStore creates the store and binds it as api's token source.
func NewSessionStore(repo sessions.Repo, api *apiclient.Client, options ...SessionStoreOption) (*SessionStore, error) {
	if repo == nil {
		return nil, pkgerrors.New("[NewSessionStore] session repo is required")
	}
	if api == nil {
		return nil, pkgerrors.New("[NewSessionStore] api client is required")
	}

	s := &SessionStore{
		repo:          repo,
		api:           api,
		logger:        log.Logger,
		userEndpoint:  defaultUserEndpoint,
		probeEndpoint: defaultProbeEndpoint,
		nowTime:       time.Now,
		record:        &sessions.Record{},
	}
	for _, opt := range options {
		opt(s)
	}

	api.Bind(s)
	return s, nil
}

// OnSessionEnd registers fn to be called after every session teardown.
func (s *SessionStore) OnSessionEnd(fn func(sessions.EndReason)) {
	if fn == nil {
		return
	}
	s.listenersLock.Lock()
	defer s.listenersLock.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *SessionStore) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *SessionStore) User() *users.SessionUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated {
		return nil
	}
	return s.record.User
}

// AccessToken returns the token attached to protected calls, empty when
// there is no session.
func (s *SessionStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Access
}

// Can reports whether the current user holds capability c. Without a
// session every capability is denied.
func (s *SessionStore) Can(c users.Capability) bool {
	return s.User().Can(c)
}

// Token implements oauth2.TokenSource over the current session.
func (s *SessionStore) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated || s.record.Access == "" {
		return nil, ErrNotAuthenticated
	}
	return s.record.Tokens().OAuth2(), nil
}

// Restore validates the persisted session. It never fails: any problem
// leaves the store unauthenticated with storage cleared.
func (s *SessionStore) Restore(ctx context.Context) State {
	rec, err := s.repo.Load()
	if err != nil {
		s.logger.Warn().Err(err).Msg("unable to load persisted session, starting signed out")
		s.EndSession(sessions.EndedRestoreFailed)
		return Unauthenticated
	}
	if rec.Access == "" {
		if !rec.Empty() {
			s.logger.Debug().Msg("discarding persisted session without access token")
			s.discard()
		}
		return Unauthenticated
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.record = rec.Clone()
	s.state = Unauthenticated
	s.mu.Unlock()

	if _, err := s.api.Get(ctx, s.probeEndpoint); err != nil {
		s.logger.Info().Err(err).Msg("persisted session did not validate")
		s.endGeneration(gen, sessions.EndedRestoreFailed)
		return s.State()
	}

	user := rec.User
	fetched := false
	if user == nil {
		if user, err = s.fetchUser(ctx, ""); err != nil {
			s.logger.Info().Err(err).Msg("unable to fetch user for persisted session")
			s.endGeneration(gen, sessions.EndedRestoreFailed)
			return s.State()
		}
		fetched = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return s.state
	}
	s.record.User = user
	s.state = Authenticated
	if fetched {
		if err := s.repo.Save(s.record); err != nil {
			s.logger.Warn().Err(err).Msg("unable to persist fetched user")
		}
	}
	s.logger.Info().Str("username", user.Username).Msg("session restored")
	return s.state
}

// Login exchanges credentials for tokens, then fetches and persists the
// user. Failures are returned as *LoginError and leave no session behind.
func (s *SessionStore) Login(ctx context.Context, creds token.Credentials) (*users.SessionUser, error) {
	if !creds.Valid() {
		return nil, &LoginError{Reason: ErrInvalidCredentials, Message: MsgMissingCredentials}
	}

	resp, err := s.api.Do(ctx, &apiclient.Call{
		Method:    http.MethodPost,
		Path:      TokenEndpoint,
		Body:      creds,
		Anonymous: true,
	})
	if err != nil {
		s.logger.Info().Err(err).Str("username", creds.Username).Msg("login rejected")
		return nil, loginFailure(err)
	}
	var pair token.TokenPair
	if err := resp.Decode(&pair); err != nil || !pair.Valid() {
		return nil, &LoginError{Reason: ErrServer, Message: MsgUnexpected, Err: err}
	}

	// A session already in place ends before the new pair is installed so
	// listeners drop anything cached for it.
	s.mu.Lock()
	replaced := false
	if !s.record.Empty() || s.state == Authenticated {
		replaced = s.endLocked()
	}
	s.generation++
	gen := s.generation
	s.record = &sessions.Record{Access: pair.Access, Refresh: pair.Refresh}
	s.state = Unauthenticated
	s.mu.Unlock()
	if replaced {
		s.notify(sessions.EndedByLogout)
	}

	user, err := s.fetchUser(ctx, creds.Username)
	if err != nil {
		s.logger.Warn().Err(err).Str("username", creds.Username).Msg("login succeeded but user fetch failed")
		s.discardGeneration(gen)
		return nil, loginFailure(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil, &LoginError{Reason: ErrInternal, Message: MsgUnexpected, Err: ErrNotAuthenticated}
	}
	s.record.User = user
	if err := s.repo.Save(s.record); err != nil {
		s.record = &sessions.Record{}
		s.generation++
		_ = s.repo.Clear()
		return nil, &LoginError{Reason: ErrInternal, Message: MsgStorage, Err: err}
	}
	s.state = Authenticated
	s.logger.Info().Str("username", user.Username).Msg("logged in")
	return user, nil
}

// Logout tears the session down synchronously. Calling it again is a no-op.
func (s *SessionStore) Logout() {
	s.EndSession(sessions.EndedByLogout)
}

// Refresh exchanges the refresh token for a new access token. Any failure
// ends the session before returning.
func (s *SessionStore) Refresh(ctx context.Context) (string, error) {
	s.mu.RLock()
	refresh := s.record.Refresh
	gen := s.generation
	s.mu.RUnlock()

	if refresh == "" {
		s.endGeneration(gen, sessions.EndedRefreshFailed)
		return "", ErrNoRefreshToken
	}

	resp, err := s.api.Do(ctx, &apiclient.Call{
		Method:    http.MethodPost,
		Path:      RefreshEndpoint,
		Body:      token.RefreshRequest{Refresh: refresh},
		Anonymous: true,
	})
	if err != nil {
		s.endGeneration(gen, sessions.EndedRefreshFailed)
		return "", errors.WithCause(ErrRefreshRejected, err)
	}
	var out token.RefreshResponse
	if err := resp.Decode(&out); err != nil || out.Access == "" {
		s.endGeneration(gen, sessions.EndedRefreshFailed)
		return "", errors.WithCause(ErrRefreshRejected, pkgerrors.New("[SessionStore.Refresh] response has no access token"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		// The session ended while the refresh was in flight.
		return "", ErrNotAuthenticated
	}
	s.record.Access = out.Access
	if err := s.repo.SaveAccess(out.Access); err != nil {
		s.logger.Warn().Err(err).Msg("unable to persist refreshed access token")
	}
	s.logger.Debug().Msg("access token refreshed")
	return out.Access, nil
}

// EndSession clears memory and storage and notifies listeners when a
// session existed.
func (s *SessionStore) EndSession(reason sessions.EndReason) {
	s.mu.Lock()
	ended := s.endLocked()
	s.mu.Unlock()
	if ended {
		s.notify(reason)
	}
}

// endGeneration ends the session only if it is still the one started at gen.
func (s *SessionStore) endGeneration(gen uint64, reason sessions.EndReason) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	ended := s.endLocked()
	s.mu.Unlock()
	if ended {
		s.notify(reason)
	}
}

func (s *SessionStore) endLocked() bool {
	existed := !s.record.Empty() || s.state == Authenticated
	s.record = &sessions.Record{}
	s.state = Unauthenticated
	s.generation++
	if err := s.repo.Clear(); err != nil {
		s.logger.Error().Err(err).Msg("unable to clear persisted session")
	}
	return existed
}

// discard clears a session that never became authenticated, silently.
func (s *SessionStore) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked()
}

func (s *SessionStore) discardGeneration(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.endLocked()
	}
}

func (s *SessionStore) notify(reason sessions.EndReason) {
	s.listenersLock.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenersLock.RUnlock()

	s.logger.Info().Str("reason", string(reason)).Msg("session ended")
	for _, fn := range listeners {
		fn(reason)
	}
}

// fetchUser reads the current user. When username is empty the user_id claim
// of the access token picks the entry out of a list answer. A list with no
// entry for the known identity is rejected.
func (s *SessionStore) fetchUser(ctx context.Context, username string) (*users.SessionUser, error) {
	resp, err := s.api.Get(ctx, s.userEndpoint)
	if err != nil {
		return nil, err
	}
	if username == "" {
		if id := s.userIDFromClaims(); id != "" {
			if username = users.UsernameForID(resp.Body, id); username == "" {
				return nil, pkgerrors.Wrapf(ErrInternal, "[SessionStore.fetchUser] no entry for user %s in %s", id, s.userEndpoint)
			}
		}
	}
	user, ok := users.DecodeSessionUser(resp.Body, username)
	if !ok {
		return nil, pkgerrors.Wrapf(ErrInternal, "[SessionStore.fetchUser] unexpected %s payload", s.userEndpoint)
	}
	return user, nil
}

func (s *SessionStore) userIDFromClaims() string {
	claims, err := token.Inspect(s.AccessToken())
	if err != nil {
		return ""
	}
	return claims.UserID
}

// Status summarises the session for display.
type Status struct {
	State     State
	Username  string
	ExpiresAt time.Time     // Access token expiry, zero when unknown
	ExpiresIn time.Duration // Zero when unknown or already expired
}

func (s *SessionStore) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{State: s.state}
	if s.state == Authenticated && s.record.User != nil {
		st.Username = s.record.User.Username
	}
	if claims, err := token.Inspect(s.record.Access); err == nil && !claims.ExpiresAt.IsZero() {
		st.ExpiresAt = claims.ExpiresAt
		if d := claims.ExpiresAt.Sub(s.nowTime()); d > 0 {
			st.ExpiresIn = d
		}
	}
	return st
}
