// Package audit writes every decision and cycle report to an append-only
// JSON-lines journal.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/model"
	"github.com/rs/zerolog"
)

type Journal struct {
	log    zerolog.Logger
	closer io.Closer
}

// Open appends to the journal file at cfg.Path.
func Open(cfg *config.JournalCfg) (*Journal, error) {
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open decision journal %s: %w", cfg.Path, err)
	}
	j := New(f)
	j.closer = f
	return j, nil
}

// New journals into w. Writes are serialized.
func New(w io.Writer) *Journal {
	return &Journal{log: zerolog.New(zerolog.SyncWriter(w))}
}

// Record writes one line per decision followed by one cycle line.
func (j *Journal) Record(_ context.Context, o model.Outcome) error {
	for _, r := range o.Results {
		d := r.Decision
		ev := j.log.Log().
			Str("record", "decision").
			Str("kind", d.Kind().String()).
			Str("edge", string(d.Edge())).
			Str("content", string(d.Content())).
			Int("priority", d.Priority()).
			Int64("predicted", d.Predicted()).
			Str("reason", d.Reason()).
			Time("created_at", d.CreatedAt())
		if ttl, ok := d.TTL(); ok {
			ev = ev.Int64("ttl_seconds", int64(ttl/time.Second))
		}
		if d.Applied() {
			ev = ev.Time("applied_at", d.AppliedAt())
		}
		if r.Err != nil {
			ev = ev.Str("error", r.Err.Error())
		}
		ev.Msg("")
	}

	ev := j.log.Log().
		Str("record", "cycle").
		Str("status", o.Status.String()).
		Str("mode", o.Mode.String()).
		Time("started_at", o.StartedAt).
		Time("finished_at", o.FinishedAt)
	if o.Status == model.StatusRan {
		ev = ev.
			Time("window_from", o.Window.From).
			Time("window_to", o.Window.To).
			Int("forecasts", len(o.Forecasts))
		for _, kind := range model.Kinds {
			c := o.Report.For(kind)
			ev = ev.Dict(kind.String(), zerolog.Dict().Int("applied", c.Applied).Int("failed", c.Failed))
		}
	}
	if o.Err != nil {
		ev = ev.Str("error", o.Err.Error())
	}
	ev.Msg("")
	return nil
}

func (j *Journal) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}
