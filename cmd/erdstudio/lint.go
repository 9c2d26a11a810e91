package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/erdstudio/internal/diagram"
	"github.com/rendis/erdstudio/pkg/schema"
)

func newLintCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "lint <file.mmd>",
		Short: "Check diagram source without rendering it",
		Example: `  erdstudio lint library.mmd
  erdstudio lint library.mmd --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}
			diags := diagram.Lint(string(source))

			w := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(diags); err != nil {
					return err
				}
			case "", "text":
				st := newStyles(w)
				all := append(append([]schema.Diagnostic{}, diags.Errors...), diags.Warnings...)
				for _, d := range all {
					fmt.Fprintf(w, "%s:%d: %s %s\n", args[0], d.Line,
						st.severity(d.Severity).Render(string(d.Severity)), d.Message)
				}
				if len(all) == 0 {
					fmt.Fprintln(w, st.Muted.Render("no problems"))
				}
			default:
				return schema.NewErrorf(schema.ErrCodeValidation, "unknown output format %q", format)
			}
			return diags.ToError()
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (text|json)")
	return cmd
}
