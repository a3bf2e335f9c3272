package pgstore

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"domino-community/internal/gateway"
	"domino-community/internal/shared/errors"

	"github.com/go-playground/assert/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"golang.org/x/oauth2"
)

var testSecret = []byte(strings.Repeat("s", 32))

func TestBuildSelect(t *testing.T) {
	stmt, args, err := BuildSelect(gateway.Communities, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("created_by", "u1")},
		Order:   []gateway.Order{gateway.Desc("created_at")},
		Limit:   5,
	})
	assert.Equal(t, err, nil)
	assert.Equal(t, stmt, "SELECT * FROM communities WHERE created_by = $1 ORDER BY created_at DESC LIMIT 5")
	assert.Equal(t, args, []any{"u1"})
}

func TestBuildSelectOperators(t *testing.T) {
	stmt, args, err := BuildSelect(gateway.Players, gateway.Query{
		Columns: []string{"id", "name"},
		Filters: []gateway.Filter{
			gateway.In("id", "p1", "p2"),
			gateway.ILike("name", "%rob%"),
			gateway.Neq("phone", "000"),
		},
		Order: []gateway.Order{gateway.Asc("name")},
	})
	assert.Equal(t, err, nil)
	assert.Equal(t, stmt, "SELECT id, name FROM players WHERE id IN ($1,$2) AND name ILIKE $3 AND phone <> $4 ORDER BY name ASC")
	assert.Equal(t, args, []any{"p1", "p2", "%rob%", "000"})
}

func TestBuildSelectRejectsUnknownIdentifiers(t *testing.T) {
	_, _, err := BuildSelect(gateway.Players, gateway.Query{Order: []gateway.Order{gateway.Asc("1; drop table players")}})
	assert.NotEqual(t, err, nil)

	_, _, err = BuildSelect(gateway.Collection("auth_users"), gateway.Query{})
	assert.NotEqual(t, err, nil)
}

func TestBuildCount(t *testing.T) {
	stmt, args, err := BuildCount(gateway.PlayerCommunities, []gateway.Filter{gateway.Eq("community_id", "c1")})
	assert.Equal(t, err, nil)
	assert.Equal(t, stmt, "SELECT COUNT(*) FROM player_communities WHERE community_id = $1")
	assert.Equal(t, args, []any{"c1"})

	stmt, args, err = BuildCount(gateway.Profiles, nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, stmt, "SELECT COUNT(*) FROM profiles")
	assert.Equal(t, len(args), 0)
}

func TestBuildInsert(t *testing.T) {
	stmt, args, err := BuildInsert(gateway.Players, gateway.Record{"phone": "555", "name": "Rob", "id": "p1"})
	assert.Equal(t, err, nil)
	assert.Equal(t, stmt, "INSERT INTO players (id,name,phone) VALUES ($1,$2,$3) RETURNING *")
	assert.Equal(t, args, []any{"p1", "Rob", "555"})

	_, _, err = BuildInsert(gateway.Players, gateway.Record{"password": "x"})
	assert.NotEqual(t, err, nil)
}

func TestNormalize(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("AST", -4*3600))
	assert.Equal(t, normalize([]byte("abc")), "abc")
	assert.Equal(t, normalize(at), "2024-05-01T16:00:00Z")
	assert.Equal(t, normalize(int64(3)), int64(3))
	assert.Equal(t, normalize(nil), nil)
}

func TestDBErrorMapsUniqueViolation(t *testing.T) {
	err := dbError("insert failed", &pq.Error{Code: "23505", Message: "duplicate key"})
	assert.Equal(t, errors.GetType(err), errors.ErrorTypeConflict)

	err = dbError("insert failed", fmt.Errorf("wrapped: %w", &pq.Error{Code: "23503"}))
	assert.Equal(t, errors.GetType(err), errors.ErrorTypeExternal)
}

func TestNewRequiresLongSecret(t *testing.T) {
	_, err := New(nil, Options{Secret: []byte("short")})
	assert.NotEqual(t, err, nil)

	s, err := New(nil, Options{Secret: testSecret})
	assert.Equal(t, err, nil)
	assert.Equal(t, s.tokenTTL, time.Hour)
}

func TestSessionFromTokenChecksSignature(t *testing.T) {
	s, err := New(nil, Options{Secret: testSecret})
	assert.Equal(t, err, nil)

	expiry := time.Now().Add(-time.Minute).Truncate(time.Second)
	claims := Claims{
		Email:            "ana@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(expiry)},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	assert.Equal(t, err, nil)

	session, err := s.sessionFromToken(&oauth2.Token{AccessToken: signed})
	assert.Equal(t, err, nil)
	assert.Equal(t, session.User.ID, "u1")
	assert.Equal(t, session.User.Email, "ana@example.com")
	assert.Equal(t, session.Token.Expiry.Equal(expiry), true)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.Repeat("x", 32)))
	assert.Equal(t, err, nil)

	_, err = s.sessionFromToken(&oauth2.Token{AccessToken: forged})
	assert.NotEqual(t, err, nil)
}
