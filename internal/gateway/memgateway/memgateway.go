// Package memgateway is an in-process Gateway with the same ordering, filter,
// uniqueness and session-event semantics as the real backends. It backs the
// controller tests and the offline demo mode.
package memgateway

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"domino-community/internal/gateway"
	"domino-community/internal/shared/errors"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Hook runs before an operation and may block or fail it.
type Hook func(ctx context.Context, op string, collection gateway.Collection) error

type user struct {
	id       string
	email    string
	password string
	metadata map[string]any
}

type Gateway struct {
	mu      sync.Mutex
	tables  map[gateway.Collection][]gateway.Record
	users   map[string]*user
	session *gateway.Session
	calls   map[string]int
	now     func() time.Time
	last    time.Time
	hook    Hook

	listeners gateway.Listeners
}

func New() *Gateway {
	return &Gateway{
		tables: make(map[gateway.Collection][]gateway.Record),
		users:  make(map[string]*user),
		calls:  make(map[string]int),
		now:    time.Now,
	}
}

// SetHook installs a hook that runs before every operation.
func (g *Gateway) SetHook(hook Hook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hook = hook
}

// SetClock replaces the clock used for created_at and token expiry.
func (g *Gateway) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Calls returns how many times op ("select", "insert", "count", "sign_in",
// "sign_up", "sign_out", "current_session") reached the gateway.
func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Seed stores rows as-is, bypassing hooks and call counters.
func (g *Gateway) Seed(collection gateway.Collection, records ...gateway.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range records {
		g.tables[collection] = append(g.tables[collection], g.prepare(r))
	}
}

func (g *Gateway) begin(ctx context.Context, op string, collection gateway.Collection) error {
	g.mu.Lock()
	g.calls[op]++
	hook := g.hook
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.WrapExternal("request cancelled", err)
	}
	if hook != nil {
		return hook(ctx, op, collection)
	}
	return nil
}

// timestamp hands out strictly increasing times so created_at ordering is total.
func (g *Gateway) timestamp() time.Time {
	t := g.now().UTC()
	if !t.After(g.last) {
		t = g.last.Add(time.Microsecond)
	}
	g.last = t
	return t
}

func (g *Gateway) prepare(r gateway.Record) gateway.Record {
	out := copyRecord(r)
	if id, ok := out["id"]; !ok || id == nil || id == "" {
		out["id"] = uuid.NewString()
	}
	if _, ok := out["created_at"]; !ok {
		out["created_at"] = g.timestamp().Format(time.RFC3339Nano)
	}
	return out
}

func (g *Gateway) Select(ctx context.Context, collection gateway.Collection, query gateway.Query) ([]gateway.Record, error) {
	if err := query.Validate(collection); err != nil {
		return nil, errors.WrapExternal("invalid query", err)
	}
	if err := g.begin(ctx, "select", collection); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var rows []gateway.Record
	for _, r := range g.tables[collection] {
		if matchesAll(r, query.Filters) {
			rows = append(rows, r)
		}
	}

	if len(query.Order) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			for _, o := range query.Order {
				c := compare(rows[i][o.Column], rows[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Descending {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if query.Limit > 0 && len(rows) > query.Limit {
		rows = rows[:query.Limit]
	}

	out := make([]gateway.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, project(r, query.Columns))
	}
	return out, nil
}

func (g *Gateway) Insert(ctx context.Context, collection gateway.Collection, records ...gateway.Record) ([]gateway.Record, error) {
	if !collection.IsValid() {
		return nil, errors.External(fmt.Sprintf("unknown collection %q", collection))
	}
	for _, r := range records {
		for col := range r {
			if !collection.HasColumn(col) {
				return nil, errors.External(fmt.Sprintf("unknown column %s.%s", collection, col))
			}
		}
	}
	if err := g.begin(ctx, "insert", collection); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	prepared := make([]gateway.Record, 0, len(records))
	for _, r := range records {
		p := g.prepare(r)
		if err := g.checkUnique(collection, p, prepared); err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}

	g.tables[collection] = append(g.tables[collection], prepared...)

	out := make([]gateway.Record, 0, len(prepared))
	for _, p := range prepared {
		out = append(out, copyRecord(p))
	}
	return out, nil
}

func (g *Gateway) checkUnique(collection gateway.Collection, r gateway.Record, pending []gateway.Record) error {
	existing := append(append([]gateway.Record(nil), g.tables[collection]...), pending...)
	for _, e := range existing {
		if fmt.Sprint(e["id"]) == fmt.Sprint(r["id"]) {
			return errors.Conflictf("duplicate key value violates unique constraint %s_pkey", collection)
		}
		if collection == gateway.PlayerCommunities &&
			fmt.Sprint(e["player_id"]) == fmt.Sprint(r["player_id"]) &&
			fmt.Sprint(e["community_id"]) == fmt.Sprint(r["community_id"]) {
			return errors.Conflictf("player %v already belongs to community %v", r["player_id"], r["community_id"])
		}
	}
	return nil
}

func (g *Gateway) Count(ctx context.Context, collection gateway.Collection, filters ...gateway.Filter) (int, error) {
	if !collection.IsValid() {
		return 0, errors.External(fmt.Sprintf("unknown collection %q", collection))
	}
	if err := gateway.ValidateFilters(collection, filters); err != nil {
		return 0, errors.WrapExternal("invalid filter", err)
	}
	if err := g.begin(ctx, "count", collection); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, r := range g.tables[collection] {
		if matchesAll(r, filters) {
			n++
		}
	}
	return n, nil
}

func (g *Gateway) CurrentSession(ctx context.Context) (*gateway.Session, error) {
	if err := g.begin(ctx, "current_session", ""); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session, nil
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	if err := g.begin(ctx, "sign_in", ""); err != nil {
		return nil, err
	}

	g.mu.Lock()
	u, ok := g.users[strings.ToLower(email)]
	if !ok || u.password != password {
		g.mu.Unlock()
		return nil, errors.Unauthorized("Invalid login credentials")
	}
	session := g.newSession(u)
	g.session = session
	g.mu.Unlock()

	g.listeners.Emit(gateway.EventSignedIn, session)
	return session, nil
}

func (g *Gateway) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*gateway.Session, error) {
	if err := g.begin(ctx, "sign_up", ""); err != nil {
		return nil, err
	}

	g.mu.Lock()
	key := strings.ToLower(email)
	if _, exists := g.users[key]; exists {
		g.mu.Unlock()
		return nil, errors.Unauthorized("User already registered")
	}
	u := &user{id: uuid.NewString(), email: email, password: password, metadata: metadata}
	g.users[key] = u
	session := g.newSession(u)
	g.session = session
	g.mu.Unlock()

	g.listeners.Emit(gateway.EventSignedIn, session)
	return session, nil
}

func (g *Gateway) SignOut(ctx context.Context) error {
	if err := g.begin(ctx, "sign_out", ""); err != nil {
		return err
	}

	g.mu.Lock()
	g.session = nil
	g.mu.Unlock()

	g.listeners.Emit(gateway.EventSignedOut, nil)
	return nil
}

func (g *Gateway) OnSessionChange(fn gateway.SessionListener) func() {
	return g.listeners.Add(fn)
}

// ExpireSession drops the session the way a failed token refresh does.
func (g *Gateway) ExpireSession() {
	g.mu.Lock()
	g.session = nil
	g.mu.Unlock()
	g.listeners.Emit(gateway.EventSignedOut, nil)
}

// RefreshSession issues a new token for the current user.
func (g *Gateway) RefreshSession() {
	g.mu.Lock()
	if g.session == nil {
		g.mu.Unlock()
		return
	}
	u := g.users[strings.ToLower(g.session.User.Email)]
	session := g.newSession(u)
	g.session = session
	g.mu.Unlock()
	g.listeners.Emit(gateway.EventTokenRefreshed, session)
}

// SignInElsewhere starts a session for email without going through SignIn,
// like a sign-in completed in another tab.
func (g *Gateway) SignInElsewhere(email string) error {
	g.mu.Lock()
	u, ok := g.users[strings.ToLower(email)]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("no user %s", email)
	}
	session := g.newSession(u)
	g.session = session
	g.mu.Unlock()
	g.listeners.Emit(gateway.EventSignedIn, session)
	return nil
}

// AddUser registers credentials without a profile row or session.
func (g *Gateway) AddUser(email, password string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	u := &user{id: uuid.NewString(), email: email, password: password}
	g.users[strings.ToLower(email)] = u
	return u.id
}

func (g *Gateway) newSession(u *user) *gateway.Session {
	return &gateway.Session{
		User: gateway.User{ID: u.id, Email: u.email, Metadata: u.metadata},
		Token: &oauth2.Token{
			AccessToken:  uuid.NewString(),
			TokenType:    "bearer",
			RefreshToken: uuid.NewString(),
			Expiry:       g.now().Add(time.Hour),
		},
	}
}

func matchesAll(r gateway.Record, filters []gateway.Filter) bool {
	for _, f := range filters {
		if !matches(r[f.Column], f) {
			return false
		}
	}
	return true
}

func matches(value any, f gateway.Filter) bool {
	switch f.Op {
	case gateway.OpEq:
		return value != nil && fmt.Sprint(value) == fmt.Sprint(f.Value)
	case gateway.OpNeq:
		return value == nil || fmt.Sprint(value) != fmt.Sprint(f.Value)
	case gateway.OpIn:
		list, _ := f.Value.([]any)
		for _, v := range list {
			if value != nil && fmt.Sprint(value) == fmt.Sprint(v) {
				return true
			}
		}
		return false
	case gateway.OpILike:
		if value == nil {
			return false
		}
		return likePattern(fmt.Sprint(f.Value)).MatchString(fmt.Sprint(value))
	}
	return false
}

func likePattern(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "%")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("(?is)^" + strings.Join(parts, ".*") + "$")
}

// compare orders nil first, then numbers, times and strings by value.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}

	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	if ta, err := time.Parse(time.RFC3339Nano, sa); err == nil {
		if tb, err := time.Parse(time.RFC3339Nano, sb); err == nil {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(strings.ToLower(sa), strings.ToLower(sb))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func project(r gateway.Record, columns []string) gateway.Record {
	if len(columns) == 0 {
		return copyRecord(r)
	}
	out := make(gateway.Record, len(columns))
	for _, c := range columns {
		out[c] = r[c]
	}
	return out
}

func copyRecord(r gateway.Record) gateway.Record {
	out := make(gateway.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
