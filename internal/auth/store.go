// Package auth holds the process-wide session state: who is signed in, with
// which profile, and whether that is still being worked out.
package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"domino-community/internal/gateway"
	"domino-community/internal/profile"
	"domino-community/internal/shared/alert"
	"domino-community/internal/shared/errors"
)

type Store struct {
	auth     gateway.Auth
	profiles *profile.Repository
	alerter  alert.Alerter
	logger   *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	state     State
	identity  *profile.Identity
	busy      int
	// signingUp counts sign-ups in flight; their own flow sets the state
	signingUp int
	// generation moves on every transition so a slow Start cannot
	// overwrite the outcome of a later event
	generation uint64

	subscribers map[int]func(Snapshot)
	next        int
	unsubscribe func()
}

func NewStore(auth gateway.Auth, profiles *profile.Repository, alerter alert.Alerter) *Store {
	return &Store{
		auth:        auth,
		profiles:    profiles,
		alerter:     alerter,
		logger:      slog.With("component", "session_store"),
		ctx:         context.Background(),
		subscribers: make(map[int]func(Snapshot)),
	}
}

// Start subscribes to session changes and resolves the initial session.
// Calling it again is a no-op.
func (s *Store) Start(ctx context.Context) {
	logger := s.logger.With("operation", "start")

	s.mu.Lock()
	if s.state != StateUnresolved {
		s.mu.Unlock()
		return
	}
	s.ctx = context.WithoutCancel(ctx)
	s.state = StateResolving
	s.generation++
	generation := s.generation
	s.mu.Unlock()
	s.notify()

	unsubscribe := s.auth.OnSessionChange(s.handleEvent)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	session, err := s.auth.CurrentSession(ctx)
	if err != nil {
		logger.Warn("Failed to read current session", "error", err)
		s.resolve(generation, StateAnonymous, nil)
		return
	}
	if !session.Active() {
		logger.Debug("No active session")
		s.resolve(generation, StateAnonymous, nil)
		return
	}

	identity, err := s.profiles.GetByID(ctx, session.User.ID)
	if err != nil {
		logger.Warn("Failed to load profile for session", "user_id", session.User.ID, "error", err)
		s.resolve(generation, StateAnonymous, nil)
		return
	}

	logger.Info("Session restored", "user_id", identity.ID, "role", identity.Role)
	s.resolve(generation, StateAuthenticated, identity)
}

func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	var identity *profile.Identity
	if s.identity != nil {
		copied := *s.identity
		identity = &copied
	}
	return Snapshot{
		State:    s.state,
		Identity: identity,
		Loading:  s.state == StateUnresolved || s.state == StateResolving || s.busy > 0,
	}
}

// Subscribe registers fn for every change and returns its unsubscribe.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
		})
	}
}

// RequireIdentity returns the signed-in identity or an auth error.
func (s *Store) RequireIdentity() (profile.Identity, error) {
	snapshot := s.Snapshot()
	if !snapshot.Authenticated() {
		return profile.Identity{}, errors.Unauthorized(msgSignInRequired)
	}
	return *snapshot.Identity, nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) error {
	logger := s.logger.With("operation", "sign_in", "email", email)

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		err := errors.Validation(msgMissingFields)
		alert.Error(s.alerter, logger, err, "")
		return err
	}

	s.begin()
	defer s.end()

	session, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		alert.Error(s.alerter, logger, err, "")
		return err
	}

	if err := s.adopt(ctx, session); err != nil {
		alert.Error(s.alerter, logger, err, "")
		return err
	}
	return nil
}

// SignUp creates the identity and its profile. The first profile ever
// created is the admin. Counting and inserting are separate round trips, so
// two concurrent first sign-ups can both become admin.
func (s *Store) SignUp(ctx context.Context, name, email, password string) error {
	logger := s.logger.With("operation", "sign_up", "email", email)

	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		err := errors.Validation(msgMissingFields)
		alert.Error(s.alerter, logger, err, "")
		return err
	}

	s.begin()
	s.mu.Lock()
	s.signingUp++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.signingUp--
		s.mu.Unlock()
		s.end()
	}()

	existing, err := s.profiles.Count(ctx)
	if err != nil {
		alert.Error(s.alerter, logger, err, "")
		return err
	}
	role := profile.RoleForCount(existing)
	logger.Debug("Assigned role for new identity", "existing_profiles", existing, "role", role)

	session, err := s.auth.SignUp(ctx, email, password, map[string]any{
		metadataName: name,
		metadataRole: role.String(),
	})
	if err != nil {
		alert.Error(s.alerter, logger, err, "")
		return err
	}

	identity, err := s.profiles.Create(ctx, profile.Identity{
		ID:    session.User.ID,
		Name:  name,
		Email: email,
		Role:  role,
	})
	if err != nil {
		// the identity exists without a profile from here on
		logger.Error("Identity created but profile insert failed", "user_id", session.User.ID)
		alert.Error(s.alerter, logger, err, "")
		return err
	}

	if !session.Active() {
		logger.Info("Sign up awaiting e-mail confirmation", "user_id", identity.ID)
		alert.Success(s.alerter, msgConfirmEmail)
		return nil
	}

	logger.Info("Signed up", "user_id", identity.ID, "role", identity.Role)
	s.transition(StateAuthenticated, identity)
	alert.Success(s.alerter, msgAccountCreated)
	return nil
}

func (s *Store) SignOut(ctx context.Context) error {
	logger := s.logger.With("operation", "sign_out")

	s.begin()
	defer s.end()

	if err := s.auth.SignOut(ctx); err != nil {
		alert.Error(s.alerter, logger, err, "")
		return err
	}

	s.transition(StateAnonymous, nil)
	return nil
}

func (s *Store) handleEvent(event gateway.Event, session *gateway.Session) {
	logger := s.logger.With("operation", "session_event", "event", event)

	switch event {
	case gateway.EventSignedOut:
		logger.Debug("Session ended")
		s.transition(StateAnonymous, nil)

	case gateway.EventSignedIn, gateway.EventTokenRefreshed:
		if !session.Active() {
			return
		}
		s.mu.Lock()
		signingUp := s.signingUp
		ctx := s.ctx
		s.mu.Unlock()
		if signingUp > 0 {
			// the sign-up flow creates the profile and sets the state itself
			return
		}
		if err := s.adopt(ctx, session); err != nil {
			logger.Warn("Failed to load profile after session change", "user_id", session.User.ID, "error", err)
			s.transition(StateAnonymous, nil)
		}
	}
}

// adopt makes session's user the current identity. A session for the user
// already signed in keeps the identity it has, role included.
func (s *Store) adopt(ctx context.Context, session *gateway.Session) error {
	s.mu.Lock()
	current := s.identity
	state := s.state
	s.mu.Unlock()

	if state == StateAuthenticated && current != nil && current.ID == session.User.ID {
		return nil
	}

	identity, err := s.profiles.GetByID(ctx, session.User.ID)
	if err != nil {
		return err
	}
	s.transition(StateAuthenticated, identity)
	return nil
}

func (s *Store) resolve(generation uint64, state State, identity *profile.Identity) {
	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return
	}
	s.setLocked(state, identity)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) transition(state State, identity *profile.Identity) {
	s.mu.Lock()
	s.setLocked(state, identity)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) setLocked(state State, identity *profile.Identity) {
	s.generation++
	s.state = state
	s.identity = identity
}

func (s *Store) begin() {
	s.mu.Lock()
	s.busy++
	s.mu.Unlock()
	s.notify()
}

func (s *Store) end() {
	s.mu.Lock()
	s.busy--
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subscribers))
	for id := 0; id < s.next; id++ {
		if fn, ok := s.subscribers[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
