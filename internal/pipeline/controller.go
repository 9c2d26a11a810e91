// Package pipeline drives one session's database-to-diagram pipeline:
// extraction, synthesis, rendering and on-demand export.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/erdstudio/internal/diagram"
	"github.com/rendis/erdstudio/internal/logging"
	"github.com/rendis/erdstudio/internal/streaming"
	"github.com/rendis/erdstudio/internal/synth"
	"github.com/rendis/erdstudio/pkg/schema"
)

// Extractor turns database bytes into schema text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Synthesizer turns schema text or a description into diagram source.
type Synthesizer interface {
	Synthesize(ctx context.Context, input string, mode synth.Mode) (string, error)
}

// Renderer lays out diagram source.
type Renderer interface {
	Render(ctx context.Context, source string) (*diagram.Rendered, error)
}

// Exporter encodes a rendered diagram.
type Exporter interface {
	Export(ctx context.Context, r *diagram.Rendered, format schema.ExportFormat, label string) (*schema.Artifact, error)
}

// ActivityRecorder receives activity entries. Record must not block.
type ActivityRecorder interface {
	Record(ctx context.Context, a schema.Activity)
}

// Options wires a Controller. Extractor, Synthesizer, Renderer and
// Exporter are required.
type Options struct {
	SessionID   string
	Extractor   Extractor
	Synthesizer Synthesizer
	Renderer    Renderer
	Exporter    Exporter
	Activity    ActivityRecorder
	Events      EventPublisher
	Logger      *slog.Logger
	Now         func() time.Time
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	SessionID   string            `json:"session_id"`
	Phase       schema.Phase      `json:"phase"`
	RunID       string            `json:"run_id,omitempty"`
	Failure     *schema.ErdError  `json:"failure,omitempty"`
	RenderError *schema.ErdError  `json:"render_error,omitempty"`
	Source      string            `json:"source,omitempty"`
	SourceName  string            `json:"source_name,omitempty"`
	Label       string            `json:"label,omitempty"`
	HasDiagram  bool              `json:"has_diagram"`
	Rendered    *diagram.Rendered `json:"-"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// job is one in-flight run or render. cause is the error code handed to
// its caller once it has been discarded.
type job struct {
	gen    uint64
	cancel context.CancelFunc
	cause  string
}

// Controller owns the state of one session. Stages run on the calling
// goroutine; the mutex guards state and is never held across a stage.
type Controller struct {
	opts   Options
	fsm    *FSM
	logger *slog.Logger

	mu         sync.Mutex
	phase      schema.Phase
	failure    *schema.ErdError
	renderErr  *schema.ErdError
	source     string
	sourceName string
	label      string
	rendered   *diagram.Rendered
	runID      string
	runGen     uint64
	renderGen  uint64
	run        *job
	render     *job
	updatedAt  time.Time
}

// New creates a Controller in the idle phase.
func New(opts Options) (*Controller, error) {
	switch {
	case opts.Extractor == nil:
		return nil, schema.NewError(schema.ErrCodeValidation, "pipeline: extractor is required")
	case opts.Synthesizer == nil:
		return nil, schema.NewError(schema.ErrCodeValidation, "pipeline: synthesizer is required")
	case opts.Renderer == nil:
		return nil, schema.NewError(schema.ErrCodeValidation, "pipeline: renderer is required")
	case opts.Exporter == nil:
		return nil, schema.NewError(schema.ErrCodeValidation, "pipeline: exporter is required")
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		opts:      opts,
		fsm:       NewFSM(opts.SessionID, opts.Events),
		logger:    opts.Logger,
		phase:     schema.PhaseIdle,
		updatedAt: opts.Now(),
	}, nil
}

// SessionID returns the session this controller belongs to.
func (c *Controller) SessionID() string {
	return c.opts.SessionID
}

// FSM exposes the transition table for hook registration.
func (c *Controller) FSM() *FSM {
	return c.fsm
}

// Status returns a snapshot of the current state.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionID:   c.opts.SessionID,
		Phase:       c.phase,
		RunID:       c.runID,
		Failure:     c.failure,
		RenderError: c.renderErr,
		Source:      c.source,
		SourceName:  c.sourceName,
		Label:       c.label,
		HasDiagram:  c.rendered != nil,
		Rendered:    c.rendered,
		UpdatedAt:   c.updatedAt,
	}
}

// Submit runs the pipeline for in: extraction for files, then synthesis,
// then rendering. It is rejected with PIPELINE_BUSY unless the controller
// is idle or ready. Extraction and synthesis failures move to failed and
// leave the previous diagram untouched.
func (c *Controller) Submit(ctx context.Context, in schema.SourceInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(c.session(ctx), runID)

	c.mu.Lock()
	if c.phase != schema.PhaseIdle && c.phase != schema.PhaseReady {
		phase := c.phase
		c.mu.Unlock()
		return schema.NewErrorf(schema.ErrCodePipelineBusy, "pipeline is %s", phase).
			WithDetails(map[string]any{"phase": string(phase)})
	}
	first := schema.PhaseSynthesizing
	if in.Kind == schema.SourceFile {
		first = schema.PhaseExtracting
	}
	if err := c.setPhase(ctx, first); err != nil {
		c.mu.Unlock()
		return err
	}
	c.runGen++
	runCtx, cancel := context.WithCancel(ctx)
	run := &job{gen: c.runGen, cancel: cancel}
	c.run = run
	c.runID = runID
	c.failure = nil
	c.mu.Unlock()
	defer cancel()

	log := logging.LogWith(ctx, c.logger)
	log.Info("pipeline run started", "kind", string(in.Kind), "name", in.Name, "run_gen", run.gen)

	text, mode := in.Description, synth.ModeInvent
	if in.Kind == schema.SourceFile {
		extracted, err := c.opts.Extractor.Extract(logging.WithStage(runCtx, "extract"), in.Bytes)
		if err := c.advance(ctx, run, schema.PhaseSynthesizing, err, schema.ErrCodeExtractionCorrupt); err != nil {
			return err
		}
		c.publish(ctx, schema.EventSchemaExtracted, map[string]any{"bytes": len(extracted)})
		text, mode = extracted, synth.ModeTranslate
	}

	source, err := c.opts.Synthesizer.Synthesize(logging.WithStage(runCtx, "synthesize"), text, mode)

	c.mu.Lock()
	if c.run != run {
		stale := discarded(run)
		c.mu.Unlock()
		return stale
	}
	if err != nil {
		failure := c.failRun(ctx, err, schema.ErrCodeSynthesisUnavailable)
		c.mu.Unlock()
		return failure
	}
	if err := c.setPhase(ctx, schema.PhaseRendering); err != nil {
		c.mu.Unlock()
		return err
	}
	c.source = source
	c.sourceName = in.Name
	c.label = in.Label()
	rj, renderCtx := c.startRender(ctx)
	c.mu.Unlock()
	defer rj.cancel()

	c.publish(ctx, schema.EventDiagramSynthesized, map[string]any{"mode": string(mode), "bytes": len(source)})
	c.recordActivity(ctx, schema.ActivityGenerated, "Diagram visualized for "+describe(in))

	rendered, err := c.opts.Renderer.Render(logging.WithStage(renderCtx, "render"), source)
	return c.finishRender(ctx, run, rj, rendered, err)
}

// Edit replaces the diagram source and re-renders it. It is allowed while
// ready or rendering; a newer edit discards the render of an older one,
// whose caller gets RENDER_SUPERSEDED. A render failure keeps the previous
// diagram and returns to ready.
func (c *Controller) Edit(ctx context.Context, source string) error {
	ctx = c.session(ctx)

	c.mu.Lock()
	switch c.phase {
	case schema.PhaseReady, schema.PhaseRendering:
	case schema.PhaseExtracting, schema.PhaseSynthesizing:
		phase := c.phase
		c.mu.Unlock()
		return schema.NewErrorf(schema.ErrCodePipelineBusy, "pipeline is %s", phase).
			WithDetails(map[string]any{"phase": string(phase)})
	default:
		phase := c.phase
		c.mu.Unlock()
		return schema.NewErrorf(schema.ErrCodeInvalidTransition, "cannot edit while %s", phase).
			WithDetails(map[string]any{"phase": string(phase)})
	}
	if err := c.setPhase(ctx, schema.PhaseRendering); err != nil {
		c.mu.Unlock()
		return err
	}
	// An edit during the run's own render takes the run over.
	if c.run != nil {
		c.run.cause = schema.ErrCodeRenderSuperseded
		c.run = nil
	}
	c.source = source
	rj, renderCtx := c.startRender(ctx)
	c.mu.Unlock()
	defer rj.cancel()

	rendered, err := c.opts.Renderer.Render(logging.WithStage(renderCtx, "render"), source)
	return c.finishRender(ctx, nil, rj, rendered, err)
}

// Export encodes the current diagram. It never changes the phase.
func (c *Controller) Export(ctx context.Context, format schema.ExportFormat) (*schema.Artifact, error) {
	ctx = c.session(ctx)

	c.mu.Lock()
	rendered, label := c.rendered, c.label
	c.mu.Unlock()

	art, err := c.opts.Exporter.Export(ctx, rendered, format, label)
	if err != nil {
		c.publish(ctx, schema.EventExportFailed, map[string]any{"format": string(format), "code": schema.CodeOf(err)})
		logging.LogWith(ctx, c.logger).Warn("export failed", "format", string(format), "error", err)
		return nil, err
	}

	c.publish(ctx, schema.EventExportCompleted, map[string]any{
		"format": string(format), "file_name": art.FileName, "bytes": len(art.Bytes),
	})
	c.recordActivity(ctx, schema.ActivityExported, "Downloaded as "+format.Label())
	return art, nil
}

// Cancel stops the in-flight run, which then fails with CANCELLED, or
// discards an in-flight edit render and returns to ready.
func (c *Controller) Cancel(ctx context.Context) error {
	ctx = c.session(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.run != nil:
		discard(c.run, schema.ErrCodeCancelled)
		discard(c.render, schema.ErrCodeCancelled)
		c.run, c.render = nil, nil
		c.failure = schema.NewError(schema.ErrCodeCancelled, "run cancelled")
		logging.LogWith(ctx, c.logger).Info("pipeline run cancelled", "phase", string(c.phase))
		return c.setPhase(ctx, schema.PhaseFailed)
	case c.render != nil:
		discard(c.render, schema.ErrCodeCancelled)
		c.render = nil
		c.publish(ctx, schema.EventRenderDiscarded, map[string]any{"reason": "cancelled"})
		return c.setPhase(ctx, schema.PhaseReady)
	}
	return schema.NewErrorf(schema.ErrCodeInvalidTransition, "nothing to cancel while %s", c.phase)
}

// Reset returns to idle from any phase. In-flight work is cancelled and
// its late results are discarded.
func (c *Controller) Reset(ctx context.Context) {
	ctx = c.session(ctx)

	c.mu.Lock()
	from := c.phase
	discard(c.run, schema.ErrCodeCancelled)
	discard(c.render, schema.ErrCodeCancelled)
	c.run, c.render = nil, nil
	c.runGen++
	c.renderGen++
	if err := c.fsm.Transition(ctx, from, schema.PhaseIdle); err != nil {
		logging.LogWith(ctx, c.logger).Warn("reset hook failed", "error", err)
	}
	c.phase = schema.PhaseIdle
	c.failure, c.renderErr = nil, nil
	c.source, c.sourceName, c.label = "", "", ""
	c.rendered = nil
	c.runID = ""
	c.updatedAt = c.opts.Now()
	c.mu.Unlock()

	c.publish(ctx, schema.EventPipelineReset, map[string]any{"from": string(from)})
	logging.LogWith(ctx, c.logger).Info("pipeline reset", "from", string(from))
}

// advance moves a live run on to the next phase, or fails it with err.
func (c *Controller) advance(ctx context.Context, run *job, to schema.Phase, err error, fallback string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != run {
		return discarded(run)
	}
	if err != nil {
		return c.failRun(ctx, err, fallback)
	}
	return c.setPhase(ctx, to)
}

// failRun records err as the failure reason. Caller holds mu.
func (c *Controller) failRun(ctx context.Context, err error, fallback string) *schema.ErdError {
	failure := asErdError(err, fallback)
	c.failure = failure
	c.run = nil
	if tErr := c.setPhase(ctx, schema.PhaseFailed); tErr != nil {
		logging.LogWith(ctx, c.logger).Error("fail transition rejected", "error", tErr)
	}
	logging.LogWith(ctx, c.logger).Warn("pipeline run failed", "code", failure.Code, "error", failure.Message)
	return failure
}

// startRender supersedes any in-flight render. Caller holds mu.
func (c *Controller) startRender(ctx context.Context) (*job, context.Context) {
	if c.render != nil {
		discard(c.render, schema.ErrCodeRenderSuperseded)
		c.publish(ctx, schema.EventRenderDiscarded, map[string]any{"reason": "superseded", "render_gen": c.render.gen})
		logging.LogWith(ctx, c.logger).Debug("render superseded", "render_gen", c.render.gen)
	}
	c.renderGen++
	renderCtx, cancel := context.WithCancel(ctx)
	c.render = &job{gen: c.renderGen, cancel: cancel}
	return c.render, renderCtx
}

// finishRender installs the result of rj if it is still the latest render.
func (c *Controller) finishRender(ctx context.Context, run, rj *job, rendered *diagram.Rendered, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.render != rj {
		return discarded(rj)
	}
	c.render = nil
	if run != nil && c.run == run {
		c.run = nil
	}
	log := logging.LogWith(ctx, c.logger)

	if err != nil {
		renderErr := asErdError(err, schema.ErrCodeInvalidSyntax)
		c.renderErr = renderErr
		if tErr := c.setPhase(ctx, schema.PhaseReady); tErr != nil {
			return tErr
		}
		c.publish(ctx, schema.EventRenderFailed, map[string]any{"code": renderErr.Code, "message": renderErr.Message})
		log.Info("render failed", "render_gen", rj.gen, "error", renderErr.Message)
		return renderErr
	}

	c.rendered = rendered
	c.renderErr = nil
	if tErr := c.setPhase(ctx, schema.PhaseReady); tErr != nil {
		return tErr
	}
	c.publish(ctx, schema.EventDiagramRendered, map[string]any{
		"render_gen": rj.gen,
		"width":      rendered.BBox.W,
		"height":     rendered.BBox.H,
	})
	log.Info("diagram ready", "render_gen", rj.gen)
	return nil
}

// setPhase runs the FSM and stores the new phase. Caller holds mu.
func (c *Controller) setPhase(ctx context.Context, to schema.Phase) error {
	if err := c.fsm.Transition(ctx, c.phase, to); err != nil {
		return err
	}
	c.phase = to
	c.updatedAt = c.opts.Now()
	return nil
}

func (c *Controller) publish(ctx context.Context, eventType string, payload map[string]any) {
	if c.opts.Events == nil {
		return
	}
	event := streaming.StreamEvent{
		SessionID: c.opts.SessionID,
		RunID:     logging.RunID(ctx),
		EventType: eventType,
		Payload:   payload,
	}
	if err := c.opts.Events.Publish(context.WithoutCancel(ctx), event); err != nil {
		logging.LogWith(ctx, c.logger).Debug("event dropped", "event", eventType, "error", err)
	}
}

func (c *Controller) recordActivity(ctx context.Context, title, description string) {
	if c.opts.Activity == nil {
		return
	}
	c.opts.Activity.Record(ctx, schema.Activity{
		ID:          uuid.NewString(),
		Tool:        schema.ToolERDStudio,
		Title:       title,
		Description: description,
		CreatedAt:   c.opts.Now(),
	})
}

func (c *Controller) session(ctx context.Context) context.Context {
	return logging.WithSessionID(ctx, c.opts.SessionID)
}

func discard(j *job, cause string) {
	if j == nil {
		return
	}
	j.cause = cause
	j.cancel()
}

// discarded is the error returned to the caller of a discarded job.
func discarded(j *job) error {
	if j.cause == schema.ErrCodeRenderSuperseded {
		return schema.NewError(schema.ErrCodeRenderSuperseded, "a newer edit replaced this render")
	}
	return schema.NewError(schema.ErrCodeCancelled, "run was cancelled and its result discarded")
}

func asErdError(err error, fallback string) *schema.ErdError {
	var erdErr *schema.ErdError
	if errors.As(err, &erdErr) {
		return erdErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return schema.NewError(schema.ErrCodeCancelled, err.Error()).WithCause(err)
	}
	return schema.NewError(fallback, err.Error()).WithCause(err)
}

func describe(in schema.SourceInput) string {
	if in.Kind == schema.SourceFile {
		if in.Name != "" {
			return in.Name
		}
		return "db"
	}
	return "text description"
}
