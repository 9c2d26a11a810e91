package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rendis/erdstudio/internal/activity"
	"github.com/rendis/erdstudio/internal/diagram"
	"github.com/rendis/erdstudio/internal/synth"
	"github.com/rendis/erdstudio/pkg/schema"
)

type generateOptions struct {
	db        string
	describe  string
	out       string
	formats   []string
	sourceOut string
	preview   bool
	noRecord  bool
}

func newGenerateCmd(c *cli) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a diagram from a database or a description and export it",
		Example: `  erdstudio generate --db shop.db --format svg,png
  erdstudio generate --describe "a library that lends books to members" --source-out library.mmd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runGenerate(cmd, opts, nil)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.db, "db", "", "SQLite database file")
	f.StringVar(&opts.describe, "describe", "", "plain-language description of the application")
	f.StringVarP(&opts.out, "out", "o", ".", "output directory")
	f.StringSliceVar(&opts.formats, "format", []string{"svg"}, "export formats (svg, png, jpg)")
	f.StringVar(&opts.sourceOut, "source-out", "", "also write the diagram source here")
	f.BoolVar(&opts.preview, "preview", false, "print a text preview of the diagram")
	f.BoolVar(&opts.noRecord, "no-record", false, "do not add entries to the activity log")
	f.String("extract-mode", "", "how the database is summarized (ddl|names)")
	f.String("model", "", "generative model name")
	f.Float64("padding", 0, "raster padding in diagram units")
	f.Float64("scale", 0, "raster scale factor")
	cmd.MarkFlagsMutuallyExclusive("db", "describe")
	cmd.MarkFlagsOneRequired("db", "describe")
	return cmd
}

// runGenerate drives one controller through a full run. gen overrides the
// configured generative service.
func (c *cli) runGenerate(cmd *cobra.Command, opts *generateOptions, gen synth.Generator) error {
	ctx := cmd.Context()

	formats := make([]schema.ExportFormat, 0, len(opts.formats))
	for _, name := range opts.formats {
		f, err := schema.ParseExportFormat(name)
		if err != nil {
			return err
		}
		formats = append(formats, f)
	}

	var in schema.SourceInput
	if opts.db != "" {
		data, err := os.ReadFile(opts.db)
		if err != nil {
			return fmt.Errorf("read database: %w", err)
		}
		in = schema.NewFileSource(filepath.Base(opts.db), data)
	} else {
		in = schema.NewTextSource(opts.describe)
	}

	st, err := c.stages(gen)
	if err != nil {
		return err
	}

	var rec *activity.Recorder
	if !opts.noRecord {
		_, r, closeRec, err := c.openRecorder(ctx)
		if err != nil {
			c.logger.Warn("activity log unavailable", "error", err.Error())
		} else {
			defer closeRec()
			rec = r
		}
	}

	ctrl, err := st.controller(uuid.NewString(), rec, nil, c.logger)
	if err != nil {
		return err
	}

	runErr := ctrl.Submit(ctx, in)
	snap := ctrl.Status()

	if opts.sourceOut != "" && snap.Source != "" {
		if err := writeFile(opts.sourceOut, []byte(snap.Source)); err != nil {
			return fmt.Errorf("write source: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), opts.sourceOut)
	}
	if runErr != nil {
		return runErr
	}
	if snap.RenderError != nil {
		return snap.RenderError
	}

	if opts.preview && snap.Rendered != nil {
		fmt.Fprint(cmd.OutOrStdout(), diagram.RenderASCII(snap.Rendered.Model))
	}

	for _, f := range formats {
		art, err := ctrl.Export(ctx, f)
		if err != nil {
			return err
		}
		path := filepath.Join(opts.out, art.FileName)
		if err := writeFile(path, art.Bytes); err != nil {
			return fmt.Errorf("write %s: %w", f.Label(), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}
