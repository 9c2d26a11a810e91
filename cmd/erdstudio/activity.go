package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rendis/erdstudio/internal/activity"
	"github.com/rendis/erdstudio/internal/store"
	"github.com/rendis/erdstudio/pkg/schema"
)

type activityOptions struct {
	where  string
	tool   string
	since  time.Duration
	limit  int
	output string
}

func newActivityCmd(c *cli) *cobra.Command {
	opts := &activityOptions{}
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "List recent diagram activity",
		Example: `  erdstudio activity --limit 5
  erdstudio activity --where 'title == "Exported ERD" && age_hours < 24'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			filter, err := activity.NewFilter(opts.where)
			if err != nil {
				return err
			}

			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			q := store.ActivityFilter{Tool: opts.tool}
			if opts.since > 0 {
				since := time.Now().Add(-opts.since)
				q.Since = &since
			}
			if opts.where == "" {
				q.Limit = opts.limit
			}
			list, err := st.ListActivities(ctx, q)
			if err != nil {
				return err
			}
			list, err = filter.Apply(list)
			if err != nil {
				return err
			}
			if opts.limit > 0 && len(list) > opts.limit {
				list = list[:opts.limit]
			}
			return renderActivities(cmd.OutOrStdout(), list, opts.output)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.where, "where", "", "filter expression over id, tool, title, description, created_at, age_hours")
	f.StringVar(&opts.tool, "tool", "", "only entries of this tool")
	f.DurationVar(&opts.since, "since", 0, "only entries newer than this (e.g. 24h)")
	f.IntVarP(&opts.limit, "limit", "n", activity.DefaultKeep, "maximum entries to show")
	f.StringVarP(&opts.output, "output", "o", "table", "output format (table|json)")
	_ = cmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func renderActivities(w io.Writer, list []*schema.Activity, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if list == nil {
			list = []*schema.Activity{}
		}
		return enc.Encode(list)
	case "", "table":
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown output format %q", format)
	}

	if len(list) == 0 {
		_, _ = fmt.Fprintln(w, "(no activity)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"When", "Tool", "Title", "Description"})
	for _, a := range list {
		t.AppendRow(table.Row{a.CreatedAt.Local().Format("2006-01-02 15:04"), a.Tool, a.Title, a.Description})
	}
	t.Render()
	return nil
}
