package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/erdstudio/pkg/schema"
)

func newRenderCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render <file.mmd>",
		Short: "Render diagram source to SVG, PNG or JPG",
		Long: `render lays out an erDiagram source file and exports it. The format follows
the extension of --out; without --out the SVG is written next to the source.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = defaultOutput(args[0])
			}
			art, err := c.renderFile(cmd.Context(), args[0], out)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			c.logger.Debug("rendered", "path", out, "width", art.Width, "height", art.Height)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (.svg, .png, .jpg)")
	cmd.Flags().Float64("padding", 0, "raster padding in diagram units")
	cmd.Flags().Float64("scale", 0, "raster scale factor")
	return cmd
}

// renderFile renders the source at in and writes the artifact to out.
func (c *cli) renderFile(ctx context.Context, in, out string) (*schema.Artifact, error) {
	format, err := formatForPath(out)
	if err != nil {
		return nil, err
	}
	source, err := os.ReadFile(in)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	st, err := c.stages(nil)
	if err != nil {
		return nil, err
	}
	rendered, err := st.renderer.Render(ctx, string(source))
	if err != nil {
		return nil, err
	}
	art, err := st.exporter.Export(ctx, rendered, format, sourceLabel(in))
	if err != nil {
		return nil, err
	}
	if err := writeFile(out, art.Bytes); err != nil {
		return nil, err
	}
	return art, nil
}

func formatForPath(path string) (schema.ExportFormat, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "output %q has no extension", path)
	}
	return schema.ParseExportFormat(ext)
}

func defaultOutput(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".svg"
}

func sourceLabel(in string) string {
	base := filepath.Base(in)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
