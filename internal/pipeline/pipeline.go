// Package pipeline runs an upload end to end: read, normalize, stage the
// uploaded rows, reconcile, stage the missing rows, commit and report.
//
// Persistence is a staged replacement: the previous upload stays visible and
// intact until the new one commits, and any failure rolls back.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Farras8/cek-pohon-app/internal/archive"
	"github.com/Farras8/cek-pohon-app/internal/duplicates"
	"github.com/Farras8/cek-pohon-app/internal/events"
	"github.com/Farras8/cek-pohon-app/internal/ingest"
	"github.com/Farras8/cek-pohon-app/internal/metrics"
	"github.com/Farras8/cek-pohon-app/internal/model"
	"github.com/Farras8/cek-pohon-app/internal/normalize"
	"github.com/Farras8/cek-pohon-app/internal/reconcile"
	"github.com/Farras8/cek-pohon-app/internal/store"
)

// Notifier receives the final outcome of every run.
type Notifier interface {
	Notify(eventType string, data any)
}

// Upload is a raw file handed to the pipeline.
type Upload struct {
	Filename string
	Data     []byte
}

type Pipeline struct {
	Store      store.Store
	Normalizer *normalize.Normalizer
	Locker     Locker
	Events     events.Broker
	Archive    archive.Archiver
	Notifier   Notifier
	Log        zerolog.Logger
	Now        func() time.Time
}

// New builds a pipeline with an in-process lock and no optional sinks.
func New(s store.Store, n *normalize.Normalizer, log zerolog.Logger) *Pipeline {
	if n == nil {
		n = normalize.New(nil)
	}
	return &Pipeline{Store: s, Normalizer: n, Locker: &MemoryLocker{}, Log: log, Now: time.Now}
}

type run struct {
	p     *Pipeline
	id    string
	log   zerolog.Logger
	stage Stage
	start time.Time
}

func (r *run) enter(s Stage, data map[string]any) {
	now := r.p.now()
	if r.stage != StageIdle {
		metrics.StageDuration.WithLabelValues(string(r.stage)).Observe(now.Sub(r.start).Seconds())
	}
	r.stage, r.start = s, now
	r.log.Debug().Str("stage", string(s)).Msg("stage")
	if r.p.Events != nil {
		r.p.Events.Publish(events.TopicPipeline, model.StageEvent{
			UploadID: r.id, Stage: string(s), At: now.UTC().Format(time.RFC3339Nano), Data: data,
		})
	}
}

func (r *run) fail(err error) error {
	failed := r.stage
	r.enter(StageFailed, map[string]any{"stage": string(failed), "error": err.Error()})
	r.enter(StageIdle, nil)
	return &StageError{Stage: failed, Err: err}
}

// Run processes one upload. Errors are *StageError values wrapping ErrBusy,
// ErrNoRows, ingest.ErrNoTableFound, *ingest.ParseError or a store failure.
func (p *Pipeline) Run(ctx context.Context, up Upload) (model.UploadResult, error) {
	unlock, err := p.Locker.TryLock(ctx)
	if err != nil {
		metrics.Uploads.WithLabelValues(outcome(err)).Inc()
		return model.UploadResult{}, err
	}
	defer unlock()

	r := &run{p: p, id: uuid.NewString(), stage: StageIdle}
	r.log = p.Log.With().Str("upload_id", r.id).Str("file", up.Filename).Logger()

	res, err := p.run(ctx, r, up)
	metrics.Uploads.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		err = r.fail(err)
		r.log.Error().Err(err).Str("stage", string(err.(*StageError).Stage)).Msg("upload failed")
		p.notify("upload.failed", map[string]any{"upload_id": r.id, "file": up.Filename, "error": err.Error()})
		return model.UploadResult{}, err
	}
	r.enter(StageIdle, nil)
	r.log.Info().
		Int("rows_read", res.RowsRead).
		Int("rows_kept", res.RowsKept).
		Int("total_missing", res.TotalMissing).
		Int("duplicate_coordinates", res.DuplicateCoordinates).
		Msg("upload committed")
	p.notify("upload.completed", res)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, r *run, up Upload) (model.UploadResult, error) {
	res := model.UploadResult{UploadID: r.id}

	r.enter(StageReading, map[string]any{"file": up.Filename, "bytes": len(up.Data)})
	table, err := ingest.ReadAll(ctx, up.Data)
	if err != nil {
		return res, err
	}
	if p.Archive != nil {
		if key, err := p.Archive.Put(ctx, r.id, up.Filename, up.Data); err != nil {
			r.log.Warn().Err(err).Msg("archive failed")
		} else {
			r.log.Debug().Str("key", key).Msg("archived source file")
		}
	}

	r.enter(StageNormalizing, map[string]any{"format": table.Format, "rows": len(table.Rows)})
	recs, st, err := p.Normalizer.Normalize(ctx, table.Rows)
	if err != nil {
		return res, err
	}
	metrics.Rows.WithLabelValues("read").Add(float64(st.Read))
	metrics.Rows.WithLabelValues("kept").Add(float64(st.Kept))
	metrics.Rows.WithLabelValues("dropped_missing_columns").Add(float64(st.DroppedMissingColumns))
	metrics.Rows.WithLabelValues("dropped_no_tree_number").Add(float64(st.DroppedNoTreeNumber))
	res.RowsRead, res.RowsKept = st.Read, st.Kept
	if len(recs) == 0 {
		return res, ErrNoRows
	}

	r.enter(StagePersistingUploads, map[string]any{"rows": len(recs)})
	rep, err := p.Store.BeginReplace(ctx)
	if err != nil {
		return res, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = rep.Rollback()
		}
	}()
	if err := rep.PutUploaded(ctx, recs); err != nil {
		return res, err
	}

	r.enter(StageReconciling, nil)
	missing, sum := reconcile.Reconcile(recs)

	r.enter(StagePersistingMissing, map[string]any{"missing": len(missing)})
	if err := rep.PutMissing(ctx, missing); err != nil {
		return res, err
	}
	if err := rep.Commit(); err != nil {
		return res, err
	}
	committed = true

	// The committed uploaded table holds exactly recs.
	r.enter(StageReporting, nil)
	dups := len(duplicates.Detect(recs))
	res.TotalMissing = sum.TotalMissing
	res.ByBlock = sum.ByBlock
	res.DuplicateCoordinates = dups
	metrics.MissingTrees.Set(float64(sum.TotalMissing))
	metrics.DuplicateGroups.Set(float64(dups))
	return res, nil
}

func (p *Pipeline) notify(eventType string, data any) {
	if p.Notifier != nil {
		p.Notifier.Notify(eventType, data)
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrNoRows):
		return "no_rows"
	case errors.Is(err, ingest.ErrNoTableFound):
		return "no_table"
	}
	var pe *ingest.ParseError
	if errors.As(err, &pe) {
		return "parse_error"
	}
	return "error"
}
