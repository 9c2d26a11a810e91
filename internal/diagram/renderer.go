package diagram

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rendis/erdstudio/internal/logging"
	"github.com/rendis/erdstudio/internal/vector"
	"github.com/rendis/erdstudio/pkg/schema"
)

// Rendered is a successfully laid-out diagram. It is replaced wholesale on
// every successful render and never mutated afterwards.
type Rendered struct {
	Source string
	Model  *Model
	Doc    *vector.Document
	BBox   vector.Rect
}

// Renderer turns diagram source into a vector document.
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer creates a Renderer.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// Render parses and lays out source. Every failure is reported as
// RENDER_INVALID_SYNTAX with the underlying message kept, except
// cancellation which is CANCELLED.
func (r *Renderer) Render(ctx context.Context, source string) (*Rendered, error) {
	model, err := Parse(source)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	svg, err := LayoutSVG(ctx, model)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, schema.NewError(schema.ErrCodeInvalidSyntax, err.Error()).WithCause(err)
	}

	doc, err := vector.Parse(svg)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeInvalidSyntax, err.Error()).WithCause(err)
	}

	out := &Rendered{Source: source, Model: model, Doc: doc, BBox: doc.BBox()}
	logging.LogWith(ctx, r.logger).Debug("diagram rendered",
		"entities", len(model.Entities),
		"relationships", len(model.Relationships),
		"bbox_w", out.BBox.W, "bbox_h", out.BBox.H)
	return out, nil
}

func cancelled(err error) error {
	msg := "render cancelled"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "render timed out"
	}
	return schema.NewError(schema.ErrCodeCancelled, msg).WithCause(err)
}
