// Package exports runs asynchronous experiment exports. A worker drains a
// queue of export requests, renders the requested formats, and stores the
// artifacts in a blob store.
package exports

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"exfolab/internal/blob"
	"exfolab/internal/core"
	"exfolab/internal/logging"
	"exfolab/pkg/domain"
)

// Format identifies an export output format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatPNG      Format = "png"
	FormatPNGTrend Format = "png_trend"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

var contentTypes = map[Format]string{
	FormatCSV:      "text/csv",
	FormatJSON:     "application/json",
	FormatPNG:      "image/png",
	FormatPNGTrend: "image/png",
}

// fileExt maps a format to the artifact filename suffix.
func fileExt(f Format) string {
	if f == FormatPNGTrend {
		return "trend.png"
	}
	return string(f)
}

// Artifact captures a stored export artifact.
type Artifact struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	Rows        int       `json:"rows"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its resulting artifacts.
type Record struct {
	ID          string                    `json:"id"`
	Filter      core.Filter               `json:"-"`
	Overrides   domain.ThresholdOverrides `json:"-"`
	Formats     []Format                  `json:"formats"`
	Status      Status                    `json:"status"`
	Error       string                    `json:"error,omitempty"`
	Artifacts   []Artifact                `json:"artifacts,omitempty"`
	RequestedBy string                    `json:"requested_by,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
}

// Input represents an enqueue request for the worker.
type Input struct {
	Filter      core.Filter
	Overrides   domain.ThresholdOverrides
	Formats     []Format
	RequestedBy string
}

// Worker executes experiment exports asynchronously.
type Worker struct {
	svc    *core.Service
	store  blob.Store
	logger *slog.Logger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id    string
	input Input
}

// NewWorker constructs an export worker over the given service and blob
// store.
func NewWorker(svc *core.Service, store blob.Store) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		svc:    svc,
		store:  store,
		logger: logging.New("exports"),
		queue:  make(chan task, 32),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an export job and returns the queued record snapshot.
func (w *Worker) Enqueue(_ context.Context, input Input) (Record, error) {
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, f := range formats {
		if _, dup := seen[f]; dup {
			continue
		}
		if _, ok := contentTypes[f]; !ok {
			return Record{}, fmt.Errorf("unsupported export format %s", f)
		}
		uniq = append(uniq, f)
		seen[f] = struct{}{}
	}

	id := newID()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		Filter:      input.Filter,
		Overrides:   input.Overrides,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	snapshot := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: id, input: input}:
	default:
		return Record{}, fmt.Errorf("export queue full")
	}
	w.logger.Info("export enqueued", "id", id, "formats", formatNames(uniq))
	return snapshot, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	record, ok := w.Get(t.id)
	if !ok {
		return
	}
	w.updateStatus(t.id, StatusRunning, "")

	table, err := w.svc.Tabulate(w.ctx, t.input.Filter)
	if err != nil {
		w.fail(t.id, fmt.Sprintf("tabulate failed: %v", err))
		return
	}
	summary, err := w.svc.Summarize(w.ctx, t.input.Filter, t.input.Overrides)
	if err != nil {
		w.fail(t.id, fmt.Sprintf("summarize failed: %v", err))
		return
	}

	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, err := render(format, table, summary)
		if err != nil {
			w.fail(t.id, err.Error())
			return
		}
		artifact := Artifact{
			ID:          newID(),
			Key:         fmt.Sprintf("exports/%s/experiments.%s", t.id, fileExt(format)),
			Format:      format,
			ContentType: contentTypes[format],
			SizeBytes:   int64(len(payload)),
			Rows:        len(table.Rows),
			CreatedAt:   time.Now().UTC(),
		}
		if w.store != nil {
			info, err := w.store.Put(w.ctx, artifact.Key, strings.NewReader(string(payload)), blob.PutOptions{
				ContentType: artifact.ContentType,
				Metadata:    map[string]string{"export_id": t.id, "format": string(format)},
			})
			if err != nil {
				w.fail(t.id, fmt.Sprintf("store artifact failed: %v", err))
				return
			}
			artifact.URL = info.URL
			if info.Size > 0 {
				artifact.SizeBytes = info.Size
			}
		}
		artifacts = append(artifacts, artifact)
	}
	w.complete(t.id, artifacts)
}

func (w *Worker) updateStatus(id string, status Status, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Info("export succeeded", "id", id, "artifacts", len(artifacts))
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Error("export failed", "id", id, "reason", reason)
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

func formatNames(formats []Format) string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}
