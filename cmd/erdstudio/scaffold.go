package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/erdstudio/internal/synth"
)

func newScaffoldCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "scaffold <file.db>",
		Short: "Write diagram source for a database without calling the generative service",
		Long: `scaffold introspects the database and writes one entity per table and one
relationship per foreign key. The result is a starting point for render or watch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read database: %w", err)
			}
			st, err := c.stages(nil)
			if err != nil {
				return err
			}
			s, err := st.extractor.Introspect(cmd.Context(), data)
			if err != nil {
				return err
			}
			source := synth.Scaffold(s)
			if out == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), source)
				return err
			}
			if err := writeFile(out, []byte(source)); err != nil {
				return err
			}
			c.logger.Info("scaffold written", "path", out, "tables", len(s.Tables))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write source to this file instead of stdout")
	return cmd
}
