package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/erdstudio/pkg/schema"
)

// styles are bound to one writer so colors are dropped when it is not a
// terminal.
type styles struct {
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	r := lipgloss.NewRenderer(w)
	return &styles{
		Error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Muted:   r.NewStyle().Faint(true),
	}
}

func (s *styles) severity(sev schema.Severity) lipgloss.Style {
	switch sev {
	case schema.SeverityError:
		return s.Error
	case schema.SeverityWarning:
		return s.Warning
	default:
		return s.Muted
	}
}
