package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/erdstudio/internal/activity"
	"github.com/rendis/erdstudio/internal/diagram"
	"github.com/rendis/erdstudio/internal/export"
	"github.com/rendis/erdstudio/internal/extract"
	"github.com/rendis/erdstudio/internal/interpreter"
	"github.com/rendis/erdstudio/internal/pipeline"
	"github.com/rendis/erdstudio/internal/store"
	"github.com/rendis/erdstudio/internal/synth"
)

// stages are the pipeline stages built from settings. They are stateless
// and shared by every controller of a process.
type stages struct {
	extractor   *extract.Extractor
	synthesizer *synth.Synthesizer
	renderer    *diagram.Renderer
	exporter    *export.Exporter
}

func (c *cli) stages(gen synth.Generator) (*stages, error) {
	mode, err := extract.ParseMode(c.cfg.Extract.Mode)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		gen = c.generator()
	}
	return &stages{
		extractor:   extract.NewExtractor(interpreter.SQLiteFactory, mode, c.logger),
		synthesizer: synth.NewSynthesizer(gen, c.logger),
		renderer:    diagram.NewRenderer(c.logger),
		exporter:    c.exporter(),
	}, nil
}

func (c *cli) generator() synth.Generator {
	return synth.NewGeminiClient(synth.GeminiConfig{
		BaseURL: c.cfg.Gemini.BaseURL,
		Model:   c.cfg.Gemini.Model,
		APIKey:  c.cfg.Gemini.APIKey,
		Timeout: c.cfg.Gemini.Timeout,
	}, nil)
}

func (c *cli) exporter() *export.Exporter {
	return export.NewExporter(export.Options{
		Padding:   c.cfg.Export.Padding,
		Scale:     c.cfg.Export.Scale,
		MaxPixels: c.cfg.Export.MaxPixels,
	}, c.logger)
}

// controller wires one session's controller. rec and events may be nil.
func (s *stages) controller(sessionID string, rec *activity.Recorder, events pipeline.EventPublisher, logger *slog.Logger) (*pipeline.Controller, error) {
	opts := pipeline.Options{
		SessionID:   sessionID,
		Extractor:   s.extractor,
		Synthesizer: s.synthesizer,
		Renderer:    s.renderer,
		Exporter:    s.exporter,
		Events:      events,
		Logger:      logger,
	}
	if rec != nil {
		opts.Activity = rec
	}
	return pipeline.New(opts)
}

// openStore opens and migrates the activity database.
func (c *cli) openStore(ctx context.Context) (*store.LibSQLStore, error) {
	path := c.cfg.DBPath
	if !strings.HasPrefix(path, "file:") && !strings.Contains(path, "://") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		path = "file:" + path
	}
	st, err := store.NewLibSQLStore(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

// openRecorder opens the store and starts a recorder on it. The returned
// closer drains the recorder before closing the store.
func (c *cli) openRecorder(ctx context.Context) (*store.LibSQLStore, *activity.Recorder, func(), error) {
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	rec := activity.NewRecorder(st, activity.Options{
		Buffer: c.cfg.Activity.Buffer,
		Keep:   c.cfg.Activity.Keep,
	}, c.logger)
	closer := func() {
		_ = rec.Close()
		if err := st.Close(); err != nil {
			c.logger.Warn("close store", slog.String("error", err.Error()))
		}
	}
	return st, rec, closer, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
