package form

import (
	"context"
	"testing"

	"domino-community/internal/shared/alert"
	"domino-community/internal/shared/errors"

	"github.com/go-playground/assert/v2"
)

type playerInput struct {
	Name        string   `json:"name" validate:"required"`
	Phone       string   `json:"phone" validate:"required"`
	Nickname    string   `json:"nickname"`
	Communities []string `json:"communities"`
}

func newPlayerForm(submit Submitter[playerInput, string]) (*Controller[playerInput, string], *alert.Recorder) {
	recorder := &alert.Recorder{}
	c := New(submit, Options{
		Name: "add_player",
		Messages: map[string]string{
			"name":  "Player name is required",
			"phone": "Player phone is required",
		},
		SuccessMessage: "Player added",
		Alerter:        recorder,
	})
	return c, recorder
}

func TestRequiredFieldBlocksSubmit(t *testing.T) {
	calls := 0
	c, recorder := newPlayerForm(func(ctx context.Context, in playerInput) (string, error) {
		calls++
		return "p1", nil
	})

	c.SetField("name", "   ")
	c.SetField("phone", "555")
	_, err := c.Submit(context.Background())
	assert.Equal(t, errors.IsValidation(err), true)
	assert.Equal(t, calls, 0)
	assert.Equal(t, c.Submitting(), false)

	last, _ := recorder.Last()
	assert.Equal(t, last, alert.Entry{Title: alert.TitleError, Message: "Player name is required"})

	c.SetField("name", "Rob")
	c.SetField("phone", "")
	_, err = c.Submit(context.Background())
	assert.Equal(t, errors.Message(err), "Player phone is required")
	assert.Equal(t, c.Field("name"), "Rob")
}

func TestSubmitSuccessClearsFields(t *testing.T) {
	var got playerInput
	c, recorder := newPlayerForm(func(ctx context.Context, in playerInput) (string, error) {
		got = in
		return "p1", nil
	})
	var navigated string
	c.OnSuccess(func(_ context.Context, id string) { navigated = id })

	c.SetField("name", " Rob ")
	c.SetField("phone", "555")
	c.Toggle("communities", "c1")
	c.Toggle("communities", "c2")
	c.Toggle("communities", "c1")

	id, err := c.Submit(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, id, "p1")
	assert.Equal(t, got, playerInput{Name: "Rob", Phone: "555", Communities: []string{"c2"}})
	assert.Equal(t, navigated, "p1")
	assert.Equal(t, len(c.Fields()), 0)

	last, _ := recorder.Last()
	assert.Equal(t, last, alert.Entry{Title: alert.TitleSuccess, Message: "Player added"})
}

func TestSubmitFailureKeepsFields(t *testing.T) {
	c, recorder := newPlayerForm(func(ctx context.Context, in playerInput) (string, error) {
		return "", errors.External("network down")
	})
	c.OnSuccess(func(context.Context, string) { t.Fatal("success callback on failure") })

	c.SetField("name", "Rob")
	c.SetField("phone", "555")
	_, err := c.Submit(context.Background())
	assert.Equal(t, errors.IsRemote(err), true)
	assert.Equal(t, c.Fields(), map[string]any{"name": "Rob", "phone": "555"})

	last, _ := recorder.Last()
	assert.Equal(t, last, alert.Entry{Title: alert.TitleError, Message: "network down"})
}

func TestSecondSubmitWhileInFlightIsRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	calls := 0
	c, _ := newPlayerForm(func(ctx context.Context, in playerInput) (string, error) {
		calls++
		close(started)
		<-release
		return "p1", nil
	})
	c.SetField("name", "Rob")
	c.SetField("phone", "555")

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-started

	assert.Equal(t, c.Submitting(), true)
	_, err := c.Submit(context.Background())
	assert.Equal(t, errors.Message(err), msgInProgress)

	close(release)
	assert.Equal(t, <-done, nil)
	assert.Equal(t, calls, 1)
	assert.Equal(t, c.Submitting(), false)
}

func TestWrongFieldTypeIsValidation(t *testing.T) {
	c, _ := newPlayerForm(func(ctx context.Context, in playerInput) (string, error) {
		return "p1", nil
	})
	c.SetField("name", 42)
	_, err := c.Submit(context.Background())
	assert.Equal(t, errors.IsValidation(err), true)
}

type submitKey struct{}

func TestOnSuccessGetsSubmitContext(t *testing.T) {
	c, _ := newPlayerForm(func(ctx context.Context, in playerInput) (string, error) {
		return "p1", nil
	})
	var seen any
	c.OnSuccess(func(ctx context.Context, id string) { seen = ctx.Value(submitKey{}) })

	c.SetField("name", "Rob")
	c.SetField("phone", "555")
	_, err := c.Submit(context.WithValue(context.Background(), submitKey{}, "attempt-1"))
	assert.Equal(t, err, nil)
	assert.Equal(t, seen, "attempt-1")
}
