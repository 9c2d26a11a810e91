package schema

import (
	"strings"
	"time"
)

// Phase is the lifecycle state of a pipeline controller.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseExtracting   Phase = "extracting"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseRendering    Phase = "rendering"
	PhaseReady        Phase = "ready"
	PhaseFailed       Phase = "failed"
)

// Busy reports whether a run is in progress.
func (p Phase) Busy() bool {
	switch p {
	case PhaseExtracting, PhaseSynthesizing, PhaseRendering:
		return true
	}
	return false
}

// SourceKind selects which input variant a SourceInput carries.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceText SourceKind = "text"
)

// SourceInput is what the user submits: a database file or a free-text description.
type SourceInput struct {
	Kind        SourceKind `json:"kind"`
	Name        string     `json:"name,omitempty"`
	Bytes       []byte     `json:"-"`
	Description string     `json:"description,omitempty"`
}

// NewFileSource builds a file input. name is the original file name, used for
// export file names only.
func NewFileSource(name string, data []byte) SourceInput {
	return SourceInput{Kind: SourceFile, Name: name, Bytes: data}
}

// NewTextSource builds a description input.
func NewTextSource(description string) SourceInput {
	return SourceInput{Kind: SourceText, Description: description}
}

// Validate checks that the input carries something to work on.
func (s SourceInput) Validate() error {
	switch s.Kind {
	case SourceFile:
		if len(s.Bytes) == 0 {
			return NewError(ErrCodeValidation, "database file is empty")
		}
	case SourceText:
		if strings.TrimSpace(s.Description) == "" {
			return NewError(ErrCodeValidation, "description is blank")
		}
	default:
		return NewErrorf(ErrCodeValidation, "unknown source kind %q", s.Kind)
	}
	return nil
}

// Label returns the input's base file name, sanitized for use in export
// file names. Description inputs and unnamed files yield "db".
func (s SourceInput) Label() string {
	if s.Kind != SourceFile {
		return "db"
	}
	name := s.Name
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, name)
	if name == "" {
		return "db"
	}
	return name
}

// Activity is one entry of the activity log.
type Activity struct {
	ID          string    `json:"id"`
	Tool        string    `json:"tool"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
