// Package gateway defines the remote data capability every screen talks to:
// filtered selects, inserts and counts over named collections, plus the
// authentication sub-capability and its session-change notifications.
//
// Every call is a single network round trip. Nothing here retries.
package gateway

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

type Collection string

const (
	Profiles          Collection = "profiles"
	Communities       Collection = "communities"
	Players           Collection = "players"
	PlayerCommunities Collection = "player_communities"
	Competitions      Collection = "competitions"
)

func (c Collection) String() string {
	return string(c)
}

// Columns lists the columns each collection exposes. Backends reject
// anything else so identifiers never come from free text.
var Columns = map[Collection][]string{
	Profiles:          {"id", "name", "email", "role", "created_at"},
	Communities:       {"id", "name", "description", "whatsapp_group_id", "latitude", "longitude", "created_by", "created_at"},
	Players:           {"id", "name", "nickname", "phone", "games_played", "games_won", "created_at"},
	PlayerCommunities: {"id", "player_id", "community_id", "created_at"},
	Competitions:      {"id", "community_id", "name", "description", "start_date", "end_date", "status", "created_at"},
}

func (c Collection) IsValid() bool {
	_, ok := Columns[c]
	return ok
}

func (c Collection) HasColumn(column string) bool {
	for _, col := range Columns[c] {
		if col == column {
			return true
		}
	}
	return false
}

type Op string

const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpIn    Op = "in"
	OpILike Op = "ilike"
)

type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

func Neq(column string, value any) Filter {
	return Filter{Column: column, Op: OpNeq, Value: value}
}

func In[V any](column string, values ...V) Filter {
	list := make([]any, len(values))
	for i, v := range values {
		list[i] = v
	}
	return Filter{Column: column, Op: OpIn, Value: list}
}

// ILike matches case-insensitively; % is the wildcard.
func ILike(column, pattern string) Filter {
	return Filter{Column: column, Op: OpILike, Value: pattern}
}

type Order struct {
	Column     string
	Descending bool
}

func Asc(column string) Order {
	return Order{Column: column}
}

func Desc(column string) Order {
	return Order{Column: column, Descending: true}
}

type Query struct {
	// Columns limits the returned fields; empty selects all of them.
	Columns []string
	Filters []Filter
	Order   []Order
	Limit   int
}

// Validate checks every identifier in q against the collection schema.
func (q Query) Validate(c Collection) error {
	if !c.IsValid() {
		return fmt.Errorf("unknown collection %q", c)
	}
	for _, col := range q.Columns {
		if !c.HasColumn(col) {
			return fmt.Errorf("unknown column %s.%s", c, col)
		}
	}
	if err := ValidateFilters(c, q.Filters); err != nil {
		return err
	}
	for _, o := range q.Order {
		if !c.HasColumn(o.Column) {
			return fmt.Errorf("unknown order column %s.%s", c, o.Column)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

func ValidateFilters(c Collection, filters []Filter) error {
	for _, f := range filters {
		if !c.HasColumn(f.Column) {
			return fmt.Errorf("unknown filter column %s.%s", c, f.Column)
		}
		switch f.Op {
		case OpEq, OpNeq, OpILike:
		case OpIn:
			if _, ok := f.Value.([]any); !ok {
				return fmt.Errorf("filter %s.%s: in expects a list", c, f.Column)
			}
		default:
			return fmt.Errorf("filter %s.%s: unknown operator %q", c, f.Column, f.Op)
		}
	}
	return nil
}

// Record is one row as the backend returns it.
type Record map[string]any

type Records interface {
	Select(ctx context.Context, collection Collection, query Query) ([]Record, error)
	// Insert returns the created rows in request order.
	Insert(ctx context.Context, collection Collection, records ...Record) ([]Record, error)
	Count(ctx context.Context, collection Collection, filters ...Filter) (int, error)
}

type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

type User struct {
	ID       string
	Email    string
	Metadata map[string]any
}

type Session struct {
	User User
	// Token is nil when the backend created the user but did not start a
	// session, e.g. while an e-mail confirmation is pending.
	Token *oauth2.Token
}

func (s *Session) Active() bool {
	return s != nil && s.Token != nil
}

func (s *Session) ExpiresAt() time.Time {
	if s == nil || s.Token == nil {
		return time.Time{}
	}
	return s.Token.Expiry
}

type SessionListener func(event Event, session *Session)

type Auth interface {
	CurrentSession(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error)
	SignOut(ctx context.Context) error
	// OnSessionChange registers fn for every session transition, whichever
	// call or background refresh caused it.
	OnSessionChange(fn SessionListener) (unsubscribe func())
}

type Gateway interface {
	Records
	Auth
}
