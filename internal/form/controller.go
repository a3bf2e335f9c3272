// Package form drives a create screen: it collects field edits, checks the
// required fields, and submits the typed value exactly once per attempt.
package form

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"

	"domino-community/internal/shared/alert"
	"domino-community/internal/shared/errors"

	"github.com/go-playground/validator/v10"
)

const msgInProgress = "submission in progress"

type Submitter[T any, R any] func(ctx context.Context, value T) (R, error)

type Options struct {
	Name string
	// Messages maps a field's json name to the alert shown when its
	// validation fails.
	Messages       map[string]string
	SuccessMessage string
	// ErrorMessage replaces the error's own message in the failure alert.
	ErrorMessage string
	Alerter      alert.Alerter
}

// Controller collects fields for a value of type T, a struct whose json tags
// name the fields and whose validate tags state the rules.
type Controller[T any, R any] struct {
	submit    Submitter[T, R]
	opts      Options
	validate  *validator.Validate
	logger    *slog.Logger
	onSuccess func(context.Context, R)

	mu         sync.Mutex
	fields     map[string]any
	submitting bool
}

func New[T any, R any](submit Submitter[T, R], opts Options) *Controller[T, R] {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Controller[T, R]{
		submit:   submit,
		opts:     opts,
		validate: v,
		logger:   slog.With("component", "form", "form", opts.Name),
		fields:   make(map[string]any),
	}
}

// OnSuccess sets what happens after a successful submit, such as going back
// to the list and refreshing it. fn runs with the context given to Submit.
func (c *Controller[T, R]) OnSuccess(fn func(context.Context, R)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSuccess = fn
}

// SetField merges one field into the form, leaving the others as they are.
func (c *Controller[T, R]) SetField(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields[name] = value
}

// Toggle adds item to the set held by field name, or removes it when present.
func (c *Controller[T, R]) Toggle(name, item string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, _ := c.fields[name].([]string)
	if i := slices.Index(set, item); i >= 0 {
		set = slices.Delete(slices.Clone(set), i, i+1)
	} else {
		set = append(slices.Clone(set), item)
	}
	c.fields[name] = set
}

func (c *Controller[T, R]) Field(name string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields[name]
}

func (c *Controller[T, R]) Fields() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.fields))
	for k, v := range c.fields {
		out[k] = v
	}
	return out
}

func (c *Controller[T, R]) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

func (c *Controller[T, R]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields = make(map[string]any)
}

// Submit validates the fields and, when they pass, calls the submitter once.
// A submit while another is in flight is rejected without side effects.
func (c *Controller[T, R]) Submit(ctx context.Context) (R, error) {
	logger := c.logger.With("operation", "submit")
	var zero R

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		logger.Debug("Ignoring submit while another is in flight")
		return zero, errors.Validation(msgInProgress)
	}
	c.submitting = true
	fields := make(map[string]any, len(c.fields))
	for k, v := range c.fields {
		fields[k] = v
	}
	c.mu.Unlock()

	value, err := c.build(fields)
	if err != nil {
		c.finish(false)
		alert.Error(c.opts.Alerter, logger, err, "")
		return zero, err
	}

	result, err := c.submit(ctx, value)
	c.finish(err == nil)
	if err != nil {
		alert.Error(c.opts.Alerter, logger, err, c.opts.ErrorMessage)
		return zero, err
	}

	logger.Info("Form submitted")
	if c.opts.SuccessMessage != "" {
		alert.Success(c.opts.Alerter, c.opts.SuccessMessage)
	}

	c.mu.Lock()
	onSuccess := c.onSuccess
	c.mu.Unlock()
	if onSuccess != nil {
		onSuccess(ctx, result)
	}
	return result, nil
}

func (c *Controller[T, R]) finish(clear bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if clear {
		c.fields = make(map[string]any)
	}
}

// build decodes the fields into T, trimming text, and runs T's rules.
func (c *Controller[T, R]) build(fields map[string]any) (T, error) {
	var value T

	for k, v := range fields {
		if s, ok := v.(string); ok {
			fields[k] = strings.TrimSpace(s)
		}
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return value, errors.WrapInternal("failed to encode form fields", err)
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) {
			return value, errors.Validationf("Invalid value for %s", typeErr.Field)
		}
		return value, errors.WrapInternal("failed to decode form fields", err)
	}

	if err := c.validate.Struct(value); err != nil {
		var invalid validator.ValidationErrors
		if !stderrors.As(err, &invalid) || len(invalid) == 0 {
			return value, errors.WrapInternal("failed to validate form", err)
		}
		first := invalid[0]
		if msg, ok := c.opts.Messages[first.Field()]; ok {
			return value, errors.Validation(msg)
		}
		return value, errors.Validation(fmt.Sprintf("%s is %s", first.Field(), describe(first.Tag())))
	}
	return value, nil
}

func describe(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "email":
		return "not a valid e-mail"
	}
	return "invalid"
}
