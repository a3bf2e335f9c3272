package alert

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"domino-community/internal/shared/errors"
)

// Alerter shows a blocking acknowledgment dialog to the user.
type Alerter interface {
	Alert(title, message string)
}

// Func adapts a function to Alerter.
type Func func(title, message string)

func (f Func) Alert(title, message string) {
	f(title, message)
}

const (
	TitleError   = "Error"
	TitleSuccess = "Success"
)

// Error logs err at a level matching its type and alerts the user with
// clientMessage, or with the error's own message when clientMessage is empty.
// This should be the only place where user-facing errors are logged.
func Error(a Alerter, logger *slog.Logger, err error, clientMessage string) {
	errorType := errors.GetType(err)
	logError(logger, err, errorType)

	message := clientMessage
	if message == "" {
		message = errors.Message(err)
	}
	if a != nil {
		a.Alert(TitleError, message)
	}
}

// Success alerts the user about a completed action.
func Success(a Alerter, message string) {
	if a != nil {
		a.Alert(TitleSuccess, message)
	}
}

func logError(logger *slog.Logger, err error, errorType errors.ErrorType) {
	logCtx := logger.With("error_type", errorType)

	switch errorType {
	case errors.ErrorTypeValidation:
		// caught before any I/O
		logCtx.Debug("Validation error", "error", err)
	case errors.ErrorTypeUnauthorized:
		logCtx.Warn("Authentication error", "error", err)
	case errors.ErrorTypeNotFound, errors.ErrorTypeConflict:
		logCtx.Info("Request rejected by backend", "error", err)
	case errors.ErrorTypeExternal:
		logCtx.Error("Remote gateway error", "error", err)
	case errors.ErrorTypeInternal:
		fallthrough
	default:
		logCtx.Error("Internal error", "error", err)
	}
}

// Writer prints alerts as "title: message" lines, the terminal version of a dialog.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) Alert(title, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s: %s\n", title, message)
}

// Entry is one alert seen by a Recorder.
type Entry struct {
	Title   string
	Message string
}

// Recorder keeps every alert in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Alert(title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Title: title, Message: message})
}

func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

func (r *Recorder) Last() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}
