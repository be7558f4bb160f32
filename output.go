package imucan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Update is state snapshot that is reported after each decoded frame
type Update struct {
	Time     time.Time `json:"time"`
	Device   Device    `json:"device"`
	Function Function  `json:"function"`
	State    State     `json:"state"`
}

// Reporter outputs state updates
type Reporter interface {
	Report(ctx context.Context, update Update) error
}

// ReporterFunc allows ordinary function to be used as Reporter
type ReporterFunc func(ctx context.Context, update Update) error

func (f ReporterFunc) Report(ctx context.Context, update Update) error {
	return f(ctx, update)
}

// TextReporter writes each update as human-readable line
type TextReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextReporter creates new instance of TextReporter
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

func (r *TextReporter) Report(_ context.Context, update Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintf(r.w, "%v\n", update.State)
	return err
}

// JSONReporter writes each update as JSON object on its own line
type JSONReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONReporter creates new instance of JSONReporter
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(w)}
}

func (r *JSONReporter) Report(_ context.Context, update Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(update)
}

// MultiReporter reports update to all reporters. All reporters are called even when some of them fail.
type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, update Update) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, update); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
