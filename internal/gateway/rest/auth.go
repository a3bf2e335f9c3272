package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"domino-community/internal/gateway"
	"domino-community/internal/shared/errors"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// accessClaims are the GoTrue access token claims the client reads. The
// token is verified by the backend, so the client only decodes it.
type accessClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

type userPayload struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type tokenPayload struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         *userPayload `json:"user"`

	// signup without an active session returns the bare user
	userPayload
}

func (p tokenPayload) user() gateway.User {
	u := p.userPayload
	if p.User != nil {
		u = *p.User
	}
	return gateway.User{ID: u.ID, Email: u.Email, Metadata: u.UserMetadata}
}

func (c *Client) token(p tokenPayload) *oauth2.Token {
	if p.AccessToken == "" {
		return nil
	}
	t := &oauth2.Token{
		AccessToken:  p.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: p.RefreshToken,
	}
	switch {
	case p.ExpiresAt > 0:
		t.Expiry = time.Unix(p.ExpiresAt, 0)
	case p.ExpiresIn > 0:
		t.Expiry = c.now().Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	return t
}

// sessionFromToken rebuilds the session of a stored token from its claims.
func sessionFromToken(t *oauth2.Token) (*gateway.Session, error) {
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(t.AccessToken, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
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

func (c *Client) OnSessionChange(fn gateway.SessionListener) func() {
	return c.listeners.Add(fn)
}

// CurrentSession returns the active session, restoring it from the token
// store on first use and refreshing it when the access token has expired.
func (c *Client) CurrentSession(ctx context.Context) (*gateway.Session, error) {
	logger := c.logger.With("operation", "current_session")

	c.mu.Lock()
	session, restored := c.session, c.restored
	c.mu.Unlock()

	if !restored {
		stored, err := c.store.Load(ctx)
		if err != nil {
			logger.Warn("Failed to load stored session", "error", err)
		}
		if stored != nil {
			session, err = sessionFromToken(stored)
			if err != nil {
				logger.Warn("Discarding unreadable stored session", "error", err)
				_ = c.store.Clear(ctx)
				session = nil
			}
		}
		c.mu.Lock()
		if !c.restored {
			c.session = session
			c.restored = true
		} else {
			session = c.session
		}
		c.mu.Unlock()
	}

	if session == nil || session.Token == nil {
		return nil, nil
	}

	if !session.Token.Valid() {
		refreshed, err := c.refresh(ctx, session)
		if err != nil {
			if errors.IsAuth(err) {
				return nil, nil
			}
			return nil, err
		}
		return refreshed, nil
	}
	return session, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	logger := c.logger.With("operation", "sign_in", "email", email)

	body := map[string]string{"email": email, "password": password}
	payload, err := c.authCall(ctx, "/auth/v1/token", url.Values{"grant_type": {"password"}}, body)
	if err != nil {
		logger.Debug("Sign in failed", "error", err)
		return nil, err
	}

	session := &gateway.Session{User: payload.user(), Token: c.token(payload)}
	if session.Token == nil {
		return nil, errors.Unauthorized("sign in returned no session")
	}

	c.setSession(ctx, session)
	logger.Info("Signed in", "user_id", session.User.ID)
	c.listeners.Emit(gateway.EventSignedIn, session)
	return session, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*gateway.Session, error) {
	logger := c.logger.With("operation", "sign_up", "email", email)

	body := map[string]any{"email": email, "password": password, "data": metadata}
	payload, err := c.authCall(ctx, "/auth/v1/signup", nil, body)
	if err != nil {
		logger.Debug("Sign up failed", "error", err)
		return nil, err
	}

	session := &gateway.Session{User: payload.user(), Token: c.token(payload)}
	if session.User.ID == "" {
		return nil, errors.Unauthorized("sign up returned no user")
	}

	if session.Token == nil {
		logger.Info("Signed up, confirmation pending", "user_id", session.User.ID)
		return session, nil
	}

	c.setSession(ctx, session)
	logger.Info("Signed up", "user_id", session.User.ID)
	c.listeners.Emit(gateway.EventSignedIn, session)
	return session, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	logger := c.logger.With("operation", "sign_out")

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session.Active() {
		req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("/auth/v1/logout", nil), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+session.Token.AccessToken)

		if err := c.wait(ctx); err != nil {
			return errors.WrapUnauthorized("sign out failed", err)
		}
		resp, err := c.plainClient().Do(req)
		if err != nil {
			return errors.WrapUnauthorized("sign out failed", err)
		}
		defer resp.Body.Close()

		// an already revoked session still signs out locally
		switch {
		case resp.StatusCode/100 == 2:
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusNotFound:
			logger.Debug("Session already invalid on the backend", "status", resp.StatusCode)
		default:
			return errors.Unauthorized(readAPIError(resp).text())
		}
	}

	c.clearSession(ctx)
	logger.Info("Signed out")
	c.listeners.Emit(gateway.EventSignedOut, nil)
	return nil
}

func (c *Client) setSession(ctx context.Context, session *gateway.Session) {
	c.mu.Lock()
	c.session = session
	c.restored = true
	c.mu.Unlock()

	if err := c.store.Save(ctx, session.Token); err != nil {
		c.logger.Warn("Failed to persist session", "error", err)
	}
}

func (c *Client) clearSession(ctx context.Context) {
	c.mu.Lock()
	c.session = nil
	c.restored = true
	c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("Failed to clear stored session", "error", err)
	}
}

// refresh exchanges the refresh token of stale for a new session. A rejected
// refresh ends the session and reports SIGNED_OUT.
func (c *Client) refresh(ctx context.Context, stale *gateway.Session) (*gateway.Session, error) {
	logger := c.logger.With("operation", "refresh", "user_id", stale.User.ID)

	if stale.Token.RefreshToken == "" {
		c.expire(ctx, stale)
		return nil, errors.Unauthorized("session expired")
	}

	body := map[string]string{"refresh_token": stale.Token.RefreshToken}
	payload, err := c.authCall(ctx, "/auth/v1/token", url.Values{"grant_type": {"refresh_token"}}, body)
	if err != nil {
		if errors.IsAuth(err) {
			logger.Info("Refresh token rejected, session ended", "error", err)
			c.expire(ctx, stale)
		}
		return nil, err
	}

	session := &gateway.Session{User: payload.user(), Token: c.token(payload)}
	if session.Token == nil {
		c.expire(ctx, stale)
		return nil, errors.Unauthorized("refresh returned no session")
	}
	if session.User.ID == "" {
		session.User = stale.User
	}

	c.setSession(ctx, session)
	logger.Debug("Session refreshed", "expires_at", session.Token.Expiry)
	c.listeners.Emit(gateway.EventTokenRefreshed, session)
	return session, nil
}

// expire drops stale unless another call already replaced it.
func (c *Client) expire(ctx context.Context, stale *gateway.Session) {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()
	if current != stale {
		return
	}
	c.clearSession(ctx)
	c.listeners.Emit(gateway.EventSignedOut, nil)
}

func (c *Client) authCall(ctx context.Context, path string, query url.Values, body any) (tokenPayload, error) {
	var payload tokenPayload

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint(path, query), body)
	if err != nil {
		return payload, err
	}
	req.Header.Set("Authorization", "Bearer "+c.anonKey)

	if err := c.wait(ctx); err != nil {
		return payload, err
	}
	resp, err := c.plainClient().Do(req)
	if err != nil {
		return payload, errors.WrapExternal("auth service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := readAPIError(resp)
		if resp.StatusCode >= 500 {
			return payload, errors.External(fmt.Sprintf("auth service returned %d: %s", resp.StatusCode, apiErr.text()))
		}
		return payload, errors.Unauthorized(apiErr.text())
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return payload, errors.WrapExternal("malformed auth response", err)
	}
	return payload, nil
}

// sessionTokenSource feeds oauth2.Transport with the current access token,
// refreshing it when expired, and falls back to the anon key when signed out.
type sessionTokenSource struct {
	ctx    context.Context
	client *Client
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	session, err := s.client.CurrentSession(s.ctx)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return &oauth2.Token{AccessToken: s.client.anonKey, TokenType: "Bearer"}, nil
	}
	return session.Token, nil
}
