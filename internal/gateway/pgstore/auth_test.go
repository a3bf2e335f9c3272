package pgstore

import (
	"context"
	"testing"
	"time"

	"domino-community/internal/gateway"
	"domino-community/internal/shared/database"
	"domino-community/internal/shared/errors"
	"domino-community/internal/tokenstore"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/assert/v2"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

const (
	insertUser         = `INSERT INTO auth_users \(id,email,password_hash,user_metadata\) VALUES \(\$1,\$2,\$3,\$4\)`
	insertRefreshToken = `INSERT INTO auth_refresh_tokens \(token,user_id\) VALUES \(\$1,\$2\)`
	userByEmail        = `SELECT id, email, password_hash, user_metadata FROM auth_users WHERE email = \$1`
	userByID           = `SELECT id, email, password_hash, user_metadata FROM auth_users WHERE id = \$1`
	rotateRefreshToken = `UPDATE auth_refresh_tokens SET revoked = \$1 WHERE token = \$2 AND revoked = \$3 RETURNING user_id`
	revokeRefreshToken = `UPDATE auth_refresh_tokens SET revoked = \$1 WHERE token = \$2`
)

type authFixture struct {
	store  *Store
	mock   sqlmock.Sqlmock
	tokens *tokenstore.MemoryStore
	now    time.Time
	events []gateway.Event
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.Equal(t, err, nil)
	t.Cleanup(func() { _ = db.Close() })

	f := &authFixture{
		mock:   mock,
		tokens: tokenstore.NewMemoryStore(),
		now:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store, err = New(&database.DB{DB: db}, Options{
		Secret:   testSecret,
		TokenTTL: time.Hour,
		Store:    f.tokens,
		Now:      func() time.Time { return f.now },
	})
	assert.Equal(t, err, nil)
	f.store.OnSessionChange(func(event gateway.Event, _ *gateway.Session) {
		f.events = append(f.events, event)
	})
	return f
}

func (f *authFixture) signUp(t *testing.T) *gateway.Session {
	t.Helper()
	f.mock.ExpectExec(insertUser).
		WithArgs(sqlmock.AnyArg(), "ana@x.com", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(insertRefreshToken).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := f.store.SignUp(context.Background(), " Ana@x.com", "secret", map[string]any{"name": "Ana"})
	assert.Equal(t, err, nil)
	assert.Equal(t, session.Active(), true)
	assert.Equal(t, session.User.Email, "ana@x.com")
	return session
}

func userRows(t *testing.T, id, password string) *sqlmock.Rows {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	assert.Equal(t, err, nil)
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "user_metadata"}).
		AddRow(id, "ana@x.com", string(hash), []byte(`{"name":"Ana","role":"admin"}`))
}

func TestSignUpDuplicateEmailIsAuthError(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.ExpectExec(insertUser).WillReturnError(&pq.Error{Code: "23505"})

	session, err := f.store.SignUp(context.Background(), "ana@x.com", "secret", nil)
	assert.Equal(t, session == nil, true)
	assert.Equal(t, errors.IsAuth(err), true)
	assert.Equal(t, errors.Message(err), "User already registered")
	assert.Equal(t, len(f.events), 0)
	assert.Equal(t, f.mock.ExpectationsWereMet(), nil)
}

func TestSignUpDatabaseFailureIsRemote(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.ExpectExec(insertUser).WillReturnError(&pq.Error{Code: "08006"})

	_, err := f.store.SignUp(context.Background(), "ana@x.com", "secret", nil)
	assert.Equal(t, errors.IsRemote(err), true)
	assert.Equal(t, f.mock.ExpectationsWereMet(), nil)
}

func TestSignInWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.ExpectQuery(userByEmail).WithArgs("ana@x.com").WillReturnRows(userRows(t, "u1", "right"))

	session, err := f.store.SignIn(context.Background(), "Ana@x.com ", "wrong")
	assert.Equal(t, session == nil, true)
	assert.Equal(t, errors.IsAuth(err), true)
	assert.Equal(t, errors.Message(err), "Invalid login credentials")
	assert.Equal(t, len(f.events), 0)
	assert.Equal(t, f.mock.ExpectationsWereMet(), nil)
}

func TestSignInUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.ExpectQuery(userByEmail).WithArgs("nobody@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "user_metadata"}))

	_, err := f.store.SignIn(context.Background(), "nobody@x.com", "secret")
	assert.Equal(t, errors.IsAuth(err), true)
	assert.Equal(t, errors.Message(err), "Invalid login credentials")
	assert.Equal(t, f.mock.ExpectationsWereMet(), nil)
}

func TestSignInIssuesSession(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.ExpectQuery(userByEmail).WithArgs("ana@x.com").WillReturnRows(userRows(t, "u1", "right"))
	f.mock.ExpectExec(insertRefreshToken).
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := f.store.SignIn(context.Background(), "ana@x.com", "right")
	assert.Equal(t, err, nil)
	assert.Equal(t, session.User.ID, "u1")
	assert.Equal(t, session.User.Metadata["role"], "admin")
	assert.Equal(t, session.Token.Expiry.Equal(f.now.Add(time.Hour)), true)
	assert.Equal(t, f.events, []gateway.Event{gateway.EventSignedIn})

	saved, err := f.tokens.Load(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, saved.RefreshToken, session.Token.RefreshToken)
	assert.Equal(t, f.mock.ExpectationsWereMet(), nil)
}

func TestCurrentSessionRotatesExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	first := f.signUp(t)

	f.now = f.now.Add(2 * time.Hour)
	f.mock.ExpectQuery(rotateRefreshToken).
		WithArgs(true, first.Token.RefreshToken, false).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(first.User.ID))
	f.mock.ExpectQuery(userByID).WithArgs(first.User.ID).WillReturnRows(userRows(t, first.User.ID, "secret"))
	f.mock.ExpectExec(insertRefreshToken).
		WithArgs(sqlmock.AnyArg(), first.User.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := f.store.CurrentSession(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, session.User.ID, first.User.ID)
	assert.NotEqual(t, session.Token.RefreshToken, first.Token.RefreshToken)
	assert.Equal(t, session.Token.Expiry.Equal(f.now.Add(time.Hour)), true)
	assert.Equal(t, f.events, []gateway.Event{gateway.EventSignedIn, gateway.EventTokenRefreshed})

	saved, err := f.tokens.Load(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, saved.RefreshToken, session.Token.RefreshToken)
	assert.Equal(t, f.mock.ExpectationsWereMet(), nil)
}

func TestCurrentSessionRejectedRefreshSignsOut(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	first := f.signUp(t)

	f.now = f.now.Add(2 * time.Hour)
	f.mock.ExpectQuery(rotateRefreshToken).
		WithArgs(true, first.Token.RefreshToken, false).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	session, err := f.store.CurrentSession(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, session == nil, true)
	assert.Equal(t, f.events, []gateway.Event{gateway.EventSignedIn, gateway.EventSignedOut})

	saved, err := f.tokens.Load(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, saved == nil, true)

	// nothing left to refresh
	session, err = f.store.CurrentSession(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, session == nil, true)
	assert.Equal(t, f.mock.ExpectationsWereMet(), nil)
}

func TestCurrentSessionKeepsFreshToken(t *testing.T) {
	f := newAuthFixture(t)
	first := f.signUp(t)

	f.now = f.now.Add(30 * time.Minute)
	session, err := f.store.CurrentSession(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, session, first)
	assert.Equal(t, f.mock.ExpectationsWereMet(), nil)
}

func TestSignOutRevokesRefreshToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	first := f.signUp(t)

	f.mock.ExpectExec(revokeRefreshToken).
		WithArgs(true, first.Token.RefreshToken).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.Equal(t, f.store.SignOut(ctx), nil)
	assert.Equal(t, f.events, []gateway.Event{gateway.EventSignedIn, gateway.EventSignedOut})

	session, err := f.store.CurrentSession(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, session == nil, true)
	assert.Equal(t, f.mock.ExpectationsWereMet(), nil)
}
