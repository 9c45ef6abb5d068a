// Package pipeline is the write path: it captures analyses and drives
// queued processing tasks through the registered sinks.
//
// The pipeline holds no state between calls. Periodic processing is the
// caller's job, typically "hoofprint process" on an interval; any number of
// processes may do that against the same database because claiming a task
// is atomic.
//
// A sink call runs under Config.SinkTimeout. When it fires the task is
// failed and the batch moves on, but a processor that ignores its context
// keeps running in the background. A crash between claim and outcome
// leaves the task IN_PROGRESS until RecoverStale fails it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/sink"
	"github.com/HendryAvila/hoofprint/internal/value"
)

// Store is the subset of capture.Store the pipeline drives.
type Store interface {
	Save(ctx context.Context, p capture.CaptureParams, sinks []capture.SinkType) (string, error)
	Get(ctx context.Context, id string) (*capture.Analysis, bool, error)
	ClaimNext(ctx context.Context, f capture.ClaimFilter) (*capture.ProcessingTask, bool, error)
	Complete(ctx context.Context, taskID string) (bool, error)
	Fail(ctx context.Context, taskID, message string) (bool, error)
	Reprocess(ctx context.Context, analysisID string, sinks []capture.SinkType) (int, error)
	RecoverStale(ctx context.Context, olderThan time.Duration) (int, error)
	SetStatus(ctx context.Context, id string, status capture.Status) (bool, error)
	Import(ctx context.Context, data *capture.ExportData, sinks []capture.SinkType) (*capture.ImportResult, error)
	Close() error
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Defaults for Config fields left at zero.
const (
	DefaultSinkTimeout   = 30 * time.Second
	DefaultBatchLimit    = 10
	DefaultStaleAfter    = 10 * time.Minute
	DefaultSourceService = "hoofprint"
)

// Config tunes the pipeline.
type Config struct {
	SinkTimeout   time.Duration
	BatchLimit    int
	StaleAfter    time.Duration
	SourceService string
}

func (c Config) withDefaults() Config {
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = DefaultSinkTimeout
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = DefaultBatchLimit
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.SourceService == "" {
		c.SourceService = DefaultSourceService
	}
	return c
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithRegisterer registers the pipeline metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Pipeline) { p.reg = reg }
}

// ─── Pipeline ────────────────────────────────────────────────────────────────

// Pipeline owns the store and every sink backend for its lifetime.
type Pipeline struct {
	store   Store
	sinks   *sink.Registry
	cfg     Config
	logger  *slog.Logger
	reg     prometheus.Registerer
	metrics *metrics
}

// New builds a pipeline. Unavailable sinks in the registry are logged once
// and never receive tasks.
func New(store Store, sinks *sink.Registry, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{store: store, sinks: sinks, cfg: cfg.withDefaults(), logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline")
	p.metrics = newMetrics(p.reg)

	for _, proc := range sinks.All() {
		if !proc.Available() {
			p.logger.Warn("sink disabled", "sink", proc.Type(), "reason", sink.Reason(proc))
		}
	}
	return p
}

// Sinks returns the registry.
func (p *Pipeline) Sinks() *sink.Registry { return p.sinks }

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// ─── Capture ─────────────────────────────────────────────────────────────────

// Capture stores an analysis and queues one task per enabled sink.
// Storage failures wrap capture.ErrStorageUnavailable.
func (p *Pipeline) Capture(ctx context.Context, params capture.CaptureParams) (string, error) {
	if params.SourceService == "" {
		params.SourceService = p.cfg.SourceService
	}
	id, err := p.store.Save(ctx, params, p.sinks.Enabled())
	if err != nil {
		return "", err
	}
	p.metrics.captured.Inc()
	p.logger.Debug("analysis captured", "analysis_id", id, "thread_id", params.ThreadID, "task_name", params.TaskName)
	return id, nil
}

// TaskResult is an already assembled task outcome. Recommendation may be
// JSON text or prose.
type TaskResult struct {
	TaskName          string      `json:"task_name"`
	Recommendation    string      `json:"recommendation"`
	ThreadID          string      `json:"thread_id"`
	ProcessInstanceID string      `json:"process_instance_id,omitempty"`
	SessionID         string      `json:"session_id,omitempty"`
	InputData         value.Value `json:"input_data"`
	Tags              []string    `json:"tags,omitempty"`
	SourceService     string      `json:"source_service,omitempty"`
}

// CaptureTaskResult captures r. A recommendation holding a JSON object or
// array becomes output_data; anything else is kept as raw_response. A
// missing input is stored as an empty object.
func (p *Pipeline) CaptureTaskResult(ctx context.Context, r TaskResult) (string, error) {
	params := capture.CaptureParams{
		ThreadID:          r.ThreadID,
		TaskName:          r.TaskName,
		InputData:         r.InputData,
		SessionID:         r.SessionID,
		ProcessInstanceID: r.ProcessInstanceID,
		Tags:              r.Tags,
		SourceService:     r.SourceService,
	}
	if params.InputData.IsNull() {
		params.InputData = value.Object()
	}
	if v, err := value.ParseString(strings.TrimSpace(r.Recommendation)); err == nil &&
		(v.Kind() == value.KindObject || v.Kind() == value.KindArray) {
		params.OutputData = v
	} else {
		params.RawResponse = r.Recommendation
	}
	return p.Capture(ctx, params)
}

// ─── Processing ──────────────────────────────────────────────────────────────

// TaskError describes one failed task of a batch.
type TaskError struct {
	TaskID     string           `json:"task_id"`
	AnalysisID string           `json:"analysis_id"`
	SinkType   capture.SinkType `json:"sink_type"`
	Message    string           `json:"error_message"`
}

// BatchResult summarizes one processing call. Processed counts tasks that
// completed, Failed those that did not.
type BatchResult struct {
	Processed int         `json:"processed"`
	Failed    int         `json:"failed"`
	Errors    []TaskError `json:"errors,omitempty"`
}

// Total is the number of tasks claimed.
func (b BatchResult) Total() int { return b.Processed + b.Failed }

func (b *BatchResult) add(o BatchResult) {
	b.Processed += o.Processed
	b.Failed += o.Failed
	b.Errors = append(b.Errors, o.Errors...)
}

// ProcessPending claims and runs at most limit PENDING tasks, oldest
// first. An empty sinkType means any sink; limit <= 0 means
// Config.BatchLimit. A failing task never aborts the batch; only store
// errors are returned.
func (p *Pipeline) ProcessPending(ctx context.Context, sinkType capture.SinkType, limit int) (BatchResult, error) {
	if limit <= 0 {
		limit = p.cfg.BatchLimit
	}
	res, err := p.drain(ctx, capture.ClaimFilter{SinkType: sinkType}, limit)
	if res.Total() > 0 {
		p.logger.Info("batch processed", "sink", sinkType, "processed", res.Processed, "failed", res.Failed)
	}
	return res, err
}

// ProcessAnalysis runs every PENDING task of one analysis.
func (p *Pipeline) ProcessAnalysis(ctx context.Context, analysisID string) (BatchResult, error) {
	return p.drain(ctx, capture.ClaimFilter{AnalysisID: analysisID}, 0)
}

// drain claims until the queue is empty for f or limit tasks ran. Zero
// limit means no limit.
func (p *Pipeline) drain(ctx context.Context, f capture.ClaimFilter, limit int) (BatchResult, error) {
	var res BatchResult
	for limit == 0 || res.Total() < limit {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		task, ok, err := p.store.ClaimNext(ctx, f)
		if err != nil {
			return res, fmt.Errorf("pipeline: %w", err)
		}
		if !ok {
			break
		}
		one, err := p.runTask(ctx, task)
		res.add(one)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// runTask records exactly one outcome for a claimed task.
func (p *Pipeline) runTask(ctx context.Context, task *capture.ProcessingTask) (BatchResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.runTask", trace.WithAttributes(
		attribute.String("hoofprint.task_id", task.ID),
		attribute.String("hoofprint.analysis_id", task.AnalysisID),
		attribute.String("hoofprint.sink", string(task.SinkType)),
	))
	defer span.End()

	procErr := p.project(ctx, task)
	// The outcome is recorded even when the caller gave up, otherwise the
	// task would sit IN_PROGRESS until the stale sweep.
	record := context.WithoutCancel(ctx)
	if procErr == nil {
		if _, err := p.store.Complete(record, task.ID); err != nil {
			span.RecordError(err)
			return BatchResult{}, fmt.Errorf("pipeline: complete %s: %w", task.ID, err)
		}
		p.metrics.tasksProcessed.WithLabelValues(string(task.SinkType), outcomeCompleted).Inc()
		return BatchResult{Processed: 1}, nil
	}

	span.RecordError(procErr)
	span.SetStatus(codes.Error, procErr.Error())
	msg := procErr.Error()
	p.logger.Warn("task failed",
		"task_id", task.ID, "analysis_id", task.AnalysisID, "sink", task.SinkType, "error", msg)
	if _, err := p.store.Fail(record, task.ID, msg); err != nil {
		return BatchResult{}, fmt.Errorf("pipeline: fail %s: %w", task.ID, err)
	}
	p.metrics.tasksProcessed.WithLabelValues(string(task.SinkType), outcomeFailed).Inc()
	return BatchResult{
		Failed: 1,
		Errors: []TaskError{{TaskID: task.ID, AnalysisID: task.AnalysisID, SinkType: task.SinkType, Message: msg}},
	}, nil
}

func (p *Pipeline) project(ctx context.Context, task *capture.ProcessingTask) error {
	a, found, err := p.store.Get(ctx, task.AnalysisID)
	if err != nil {
		return fmt.Errorf("load analysis: %w", err)
	}
	if !found {
		return fmt.Errorf("analysis %s not found", task.AnalysisID)
	}
	proc, ok := p.sinks.Get(task.SinkType)
	if !ok {
		return fmt.Errorf("no processor registered for sink %q", task.SinkType)
	}
	if !proc.Available() {
		return &sink.UnavailableError{Sink: task.SinkType, Reason: sink.Reason(proc)}
	}

	start := timeNow()
	err = p.callSink(ctx, proc, a)
	p.metrics.sinkDuration.WithLabelValues(string(task.SinkType)).Observe(since(start).Seconds())
	return err
}

// callSink runs the processor in its own goroutine so a hung backend
// cannot stall the batch past SinkTimeout. Panics become errors.
func (p *Pipeline) callSink(ctx context.Context, proc sink.Processor, a *capture.Analysis) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.SinkTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("sink %s panicked: %v", proc.Type(), r)
			}
		}()
		done <- proc.Process(ctx, a)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("sink %s timed out after %s", proc.Type(), p.cfg.SinkTimeout)
		}
		return ctx.Err()
	}
}

// ─── Maintenance ─────────────────────────────────────────────────────────────

// Reprocess queues one fresh task per requested sink that is enabled; no
// sinks means all enabled sinks. found is false for an unknown analysis;
// queued is zero when none of the requested sinks is enabled.
func (p *Pipeline) Reprocess(ctx context.Context, analysisID string, sinks []capture.SinkType) (queued int, found bool, err error) {
	_, found, err = p.store.Get(ctx, analysisID)
	if err != nil {
		return 0, false, fmt.Errorf("pipeline: %w", err)
	}
	if !found {
		return 0, false, nil
	}
	targets := p.sinks.Resolve(sinks)
	if len(targets) == 0 {
		p.logger.Warn("nothing to requeue", "analysis_id", analysisID, "requested", sinks)
		return 0, true, nil
	}
	n, err := p.store.Reprocess(ctx, analysisID, targets)
	if err != nil {
		return 0, true, fmt.Errorf("pipeline: %w", err)
	}
	p.logger.Info("analysis requeued", "analysis_id", analysisID, "tasks", n)
	return n, true, nil
}

// Archive marks an analysis ARCHIVED. Its tasks are kept and later
// processing never changes the status again. found is false for an
// unknown analysis.
func (p *Pipeline) Archive(ctx context.Context, analysisID string) (bool, error) {
	found, err := p.store.SetStatus(ctx, analysisID, capture.StatusArchived)
	if err != nil {
		return false, fmt.Errorf("pipeline: %w", err)
	}
	if found {
		p.logger.Info("analysis archived", "analysis_id", analysisID)
	}
	return found, nil
}

// Import loads exported analyses. Existing ids are skipped; every newly
// imported analysis that is not archived gets one task per enabled sink.
func (p *Pipeline) Import(ctx context.Context, data *capture.ExportData) (*capture.ImportResult, error) {
	res, err := p.store.Import(ctx, data, p.sinks.Enabled())
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p.logger.Info("analyses imported",
		"imported", res.AnalysesImported, "skipped", res.AnalysesSkipped, "tasks", res.TasksQueued)
	return res, nil
}

// RecoverStale fails IN_PROGRESS tasks older than Config.StaleAfter.
func (p *Pipeline) RecoverStale(ctx context.Context) (int, error) {
	n, err := p.store.RecoverStale(ctx, p.cfg.StaleAfter)
	if err != nil {
		return 0, fmt.Errorf("pipeline: %w", err)
	}
	if n > 0 {
		p.metrics.staleRecovered.Add(float64(n))
		p.logger.Warn("stale tasks failed", "count", n, "older_than", p.cfg.StaleAfter)
	}
	return n, nil
}

// Close releases every sink backend concurrently, then the store.
func (p *Pipeline) Close(ctx context.Context) error {
	var g errgroup.Group
	for _, proc := range p.sinks.All() {
		g.Go(func() error {
			if err := proc.Close(ctx); err != nil {
				return fmt.Errorf("close sink %s: %w", proc.Type(), err)
			}
			return nil
		})
	}
	sinkErr := g.Wait()
	return errors.Join(sinkErr, p.store.Close())
}
