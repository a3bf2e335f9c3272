package gateway

import (
	"fmt"
	"testing"

	"github.com/go-playground/assert/v2"
)

type row struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Games int    `json:"games_played"`
}

func (r *row) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("row %s has no name", r.ID)
	}
	return nil
}

func TestDecodeSkipsInvalidRecords(t *testing.T) {
	records := []Record{
		{"id": "a", "name": "Ana", "games_played": 3},
		{"name": "no id"},
		{"id": "b", "name": ""},
		{"id": "c", "name": "Bo", "games_played": "many"},
		{"id": "d", "name": "Cy"},
	}

	rows := Decode[row](Players, records)
	assert.Equal(t, len(rows), 2)
	assert.Equal(t, rows[0], row{ID: "a", Name: "Ana", Games: 3})
	assert.Equal(t, rows[1].ID, "d")
}

func TestQueryValidate(t *testing.T) {
	assert.Equal(t, Query{Filters: []Filter{Eq("name", "x")}}.Validate(Players), nil)
	assert.NotEqual(t, Query{Columns: []string{"secret"}}.Validate(Players), nil)
	assert.NotEqual(t, Query{Order: []Order{Desc("missing")}}.Validate(Players), nil)
	assert.NotEqual(t, Query{Limit: -1}.Validate(Players), nil)
	assert.NotEqual(t, Query{}.Validate(Collection("auth_users")), nil)
	assert.NotEqual(t, Query{Filters: []Filter{{Column: "id", Op: OpIn, Value: "x"}}}.Validate(Players), nil)
	assert.NotEqual(t, Query{Filters: []Filter{{Column: "id", Op: "gt", Value: 1}}}.Validate(Players), nil)
}

func TestListenersFanOutInOrder(t *testing.T) {
	var l Listeners
	var got []string

	unsubscribeA := l.Add(func(event Event, _ *Session) { got = append(got, "a:"+string(event)) })
	l.Add(func(event Event, _ *Session) { got = append(got, "b:"+string(event)) })
	assert.Equal(t, l.Len(), 2)

	l.Emit(EventSignedIn, &Session{})
	assert.Equal(t, got, []string{"a:SIGNED_IN", "b:SIGNED_IN"})

	unsubscribeA()
	unsubscribeA()
	assert.Equal(t, l.Len(), 1)

	got = nil
	l.Emit(EventSignedOut, nil)
	assert.Equal(t, got, []string{"b:SIGNED_OUT"})
}

func TestListenersMayReenter(t *testing.T) {
	var l Listeners
	calls := 0
	var unsubscribe func()
	unsubscribe = l.Add(func(Event, *Session) {
		calls++
		unsubscribe()
		l.Add(func(Event, *Session) {})
	})

	l.Emit(EventTokenRefreshed, nil)
	l.Emit(EventTokenRefreshed, nil)
	assert.Equal(t, calls, 1)
	assert.Equal(t, l.Len(), 1)
}

func TestSessionActive(t *testing.T) {
	var s *Session
	assert.Equal(t, s.Active(), false)
	assert.Equal(t, s.ExpiresAt().IsZero(), true)
	assert.Equal(t, (&Session{User: User{ID: "u1"}}).Active(), false)
}
