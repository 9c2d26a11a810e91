// Package synth asks a generative service for Mermaid ER diagram source.
package synth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/rendis/erdstudio/internal/diagram"
	"github.com/rendis/erdstudio/internal/logging"
	"github.com/rendis/erdstudio/pkg/schema"
)

// Generator is a text generation service.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, p Prompt) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// Synthesizer turns schemas or descriptions into diagram source.
type Synthesizer struct {
	gen    Generator
	logger *slog.Logger
}

// NewSynthesizer creates a Synthesizer backed by gen.
func NewSynthesizer(gen Generator, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{gen: gen, logger: logger}
}

var fenceReplacer = strings.NewReplacer("```mermaid", "", "```", "")

// Clean strips markdown code fences and surrounding whitespace.
func Clean(raw string) string {
	return strings.TrimSpace(fenceReplacer.Replace(raw))
}

// Synthesize returns diagram source for input. The result always starts
// with the erDiagram header.
func (s *Synthesizer) Synthesize(ctx context.Context, input string, mode Mode) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "nothing to synthesize from")
	}
	prompt, err := BuildPrompt(mode, input)
	if err != nil {
		return "", err
	}

	log := logging.LogWith(ctx, s.logger)
	start := time.Now()
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
			return "", schema.NewError(schema.ErrCodeCancelled, "synthesis cancelled").WithCause(err)
		}
		log.Warn("generative service failed", "mode", string(mode), "error", err)
		return "", schema.NewError(schema.ErrCodeSynthesisUnavailable, "generative service failed").
			WithCause(err).
			WithDetails(map[string]any{"retryable": true})
	}

	source := Clean(raw)
	if !strings.HasPrefix(source, diagram.Header) {
		return "", schema.NewError(schema.ErrCodeSynthesisMalformed, "response does not start with "+diagram.Header).
			WithDetails(map[string]any{"raw": raw})
	}

	log.Info("diagram synthesized",
		"mode", string(mode),
		"input_bytes", len(input),
		"source_bytes", len(source),
		"duration_ms", time.Since(start).Milliseconds())
	return source, nil
}
