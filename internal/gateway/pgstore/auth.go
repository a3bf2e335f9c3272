package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"domino-community/internal/gateway"
	"domino-community/internal/shared/errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

type Claims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

type authUser struct {
	id           string
	email        string
	passwordHash string
	metadata     map[string]any
}

func (s *Store) OnSessionChange(fn gateway.SessionListener) func() {
	return s.listeners.Add(fn)
}

func (s *Store) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*gateway.Session, error) {
	logger := s.logger.With("operation", "sign_up", "email", email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.WrapUnauthorized("failed to hash password", err)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	rawMetadata, err := json.Marshal(metadata)
	if err != nil {
		return nil, errors.WrapInternal("failed to encode user metadata", err)
	}

	u := authUser{
		id:           uuid.NewString(),
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: string(hash),
		metadata:     metadata,
	}

	stmt, args, err := psql.Insert("auth_users").
		Columns("id", "email", "password_hash", "user_metadata").
		Values(u.id, u.email, u.passwordHash, string(rawMetadata)).
		ToSql()
	if err != nil {
		return nil, errors.WrapInternal("failed to build sign up query", err)
	}

	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Unauthorized("User already registered")
		}
		logger.Error("Failed to create user", "error", err)
		return nil, errors.WrapExternal("sign up failed", err)
	}

	session, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}

	logger.Info("Signed up", "user_id", u.id)
	s.listeners.Emit(gateway.EventSignedIn, session)
	return session, nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	logger := s.logger.With("operation", "sign_in", "email", email)

	u, err := s.findUser(ctx, sq.Eq{"email": strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		if errors.GetType(err) == errors.ErrorTypeNotFound {
			return nil, errors.Unauthorized("Invalid login credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password)); err != nil {
		logger.Debug("Password mismatch")
		return nil, errors.Unauthorized("Invalid login credentials")
	}

	session, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}

	logger.Info("Signed in", "user_id", u.id)
	s.listeners.Emit(gateway.EventSignedIn, session)
	return session, nil
}

func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session.Active() && session.Token.RefreshToken != "" {
		if err := s.revoke(ctx, session.Token.RefreshToken); err != nil {
			return errors.WrapUnauthorized("sign out failed", err)
		}
	}

	s.clearSession(ctx)
	s.logger.Info("Signed out")
	s.listeners.Emit(gateway.EventSignedOut, nil)
	return nil
}

// CurrentSession restores the stored session, rotating the refresh token
// when the access token has expired.
func (s *Store) CurrentSession(ctx context.Context) (*gateway.Session, error) {
	logger := s.logger.With("operation", "current_session")

	s.mu.Lock()
	session, restored := s.session, s.restored
	s.mu.Unlock()

	if !restored {
		stored, err := s.store.Load(ctx)
		if err != nil {
			logger.Warn("Failed to load stored session", "error", err)
		}
		if stored != nil {
			session, err = s.sessionFromToken(stored)
			if err != nil {
				logger.Warn("Discarding unreadable stored session", "error", err)
				_ = s.store.Clear(ctx)
				session = nil
			}
		}
		s.mu.Lock()
		if !s.restored {
			s.session = session
			s.restored = true
		} else {
			session = s.session
		}
		s.mu.Unlock()
	}

	if !session.Active() {
		return nil, nil
	}
	if session.Token.Expiry.After(s.now()) {
		return session, nil
	}

	refreshed, err := s.refresh(ctx, session)
	if err != nil {
		logger.Info("Session ended", "error", err)
		s.mu.Lock()
		current := s.session
		s.mu.Unlock()
		if current == session {
			s.clearSession(ctx)
			s.listeners.Emit(gateway.EventSignedOut, nil)
		}
		if errors.IsAuth(err) {
			return nil, nil
		}
		return nil, err
	}
	return refreshed, nil
}

func (s *Store) refresh(ctx context.Context, stale *gateway.Session) (*gateway.Session, error) {
	var userID string
	stmt, args, err := psql.Update("auth_refresh_tokens").
		Set("revoked", true).
		Where(sq.Eq{"token": stale.Token.RefreshToken}).
		Where(sq.Eq{"revoked": false}).
		Suffix("RETURNING user_id").
		ToSql()
	if err != nil {
		return nil, errors.WrapInternal("failed to build refresh query", err)
	}

	err = s.db.QueryRowContext(ctx, stmt, args...).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Unauthorized("Invalid Refresh Token")
		}
		return nil, errors.WrapExternal("refresh failed", err)
	}

	u, err := s.findUser(ctx, sq.Eq{"id": userID})
	if err != nil {
		if errors.GetType(err) == errors.ErrorTypeNotFound {
			return nil, errors.Unauthorized("user no longer exists")
		}
		return nil, err
	}

	session, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	s.listeners.Emit(gateway.EventTokenRefreshed, session)
	return session, nil
}

func (s *Store) issue(ctx context.Context, u authUser) (*gateway.Session, error) {
	now := s.now()
	expiry := now.Add(s.tokenTTL)

	claims := Claims{
		Email:        u.email,
		UserMetadata: u.metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, errors.WrapInternal("failed to sign access token", err)
	}

	refreshToken := strings.ReplaceAll(uuid.NewString(), "-", "")
	stmt, args, err := psql.Insert("auth_refresh_tokens").
		Columns("token", "user_id").
		Values(refreshToken, u.id).
		ToSql()
	if err != nil {
		return nil, errors.WrapInternal("failed to build refresh token query", err)
	}
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.WrapExternal("failed to store refresh token", err)
	}

	session := &gateway.Session{
		User: gateway.User{ID: u.id, Email: u.email, Metadata: u.metadata},
		Token: &oauth2.Token{
			AccessToken:  signed,
			TokenType:    "Bearer",
			RefreshToken: refreshToken,
			Expiry:       expiry,
		},
	}

	s.mu.Lock()
	s.session = session
	s.restored = true
	s.mu.Unlock()

	if err := s.store.Save(ctx, session.Token); err != nil {
		s.logger.Warn("Failed to persist session", "error", err)
	}
	return session, nil
}

func (s *Store) revoke(ctx context.Context, refreshToken string) error {
	stmt, args, err := psql.Update("auth_refresh_tokens").
		Set("revoked", true).
		Where(sq.Eq{"token": refreshToken}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, stmt, args...)
	return err
}

func (s *Store) clearSession(ctx context.Context) {
	s.mu.Lock()
	s.session = nil
	s.restored = true
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("Failed to clear stored session", "error", err)
	}
}

func (s *Store) findUser(ctx context.Context, where sq.Eq) (authUser, error) {
	var u authUser
	var rawMetadata []byte

	stmt, args, err := psql.Select("id", "email", "password_hash", "user_metadata").
		From("auth_users").
		Where(where).
		ToSql()
	if err != nil {
		return u, errors.WrapInternal("failed to build user query", err)
	}

	err = s.db.QueryRowContext(ctx, stmt, args...).Scan(&u.id, &u.email, &u.passwordHash, &rawMetadata)
	if err != nil {
		if err == sql.ErrNoRows {
			return u, errors.NotFoundf("user not found")
		}
		return u, errors.WrapExternal("failed to load user", err)
	}

	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &u.metadata); err != nil {
			s.logger.Warn("Ignoring malformed user metadata", "user_id", u.id, "error", err)
		}
	}
	return u, nil
}

// sessionFromToken checks the signature of a stored token. Expired tokens are
// accepted here so CurrentSession can rotate them.
func (s *Store) sessionFromToken(t *oauth2.Token) (*gateway.Session, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(t.AccessToken, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("access token has no subject")
	}
	if t.Expiry.IsZero() && claims.ExpiresAt != nil {
		t.Expiry = claims.ExpiresAt.Time
	}

	return &gateway.Session{
		User:  gateway.User{ID: claims.Subject, Email: claims.Email, Metadata: claims.UserMetadata},
		Token: t,
	}, nil
}
