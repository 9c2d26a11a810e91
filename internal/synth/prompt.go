package synth

import (
	"fmt"

	"github.com/rendis/erdstudio/pkg/schema"
)

// Mode selects how the generative service is asked for a diagram.
type Mode string

const (
	// ModeTranslate turns an extracted schema into a diagram.
	ModeTranslate Mode = "translate"
	// ModeInvent designs a schema from a free-text description.
	ModeInvent Mode = "invent"
)

// Prompt is one request to a Generator.
type Prompt struct {
	Text        string
	Temperature float64
}

const translateTemplate = `Translate the following SQL schema into a Mermaid erDiagram.
Return ONLY the code block starting with 'erDiagram'.
Identify relationships by foreign keys and by column naming conventions such as <table>_id.
Do not invent tables or columns that are not in the schema.

Schema:
"%s"`

const inventTemplate = `Design a relational database schema for the following application and express it as a Mermaid erDiagram.
Return ONLY the code block starting with 'erDiagram'.
Give every entity a primary key, mark foreign keys with FK and label every relationship.
The output must be syntactically valid Mermaid.

Description:
"%s"`

// BuildPrompt returns the prompt for mode over input.
func BuildPrompt(mode Mode, input string) (Prompt, error) {
	switch mode {
	case ModeTranslate:
		return Prompt{Text: fmt.Sprintf(translateTemplate, input), Temperature: 0.1}, nil
	case ModeInvent:
		return Prompt{Text: fmt.Sprintf(inventTemplate, input), Temperature: 0.4}, nil
	}
	return Prompt{}, schema.NewErrorf(schema.ErrCodeValidation, "unknown synthesis mode %q", mode)
}
