package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/rendis/erdstudio/pkg/schema"
)

const watchDebounce = 100 * time.Millisecond

func newWatchCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "watch <file.mmd>",
		Short: "Re-render diagram source every time it is saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			if out == "" {
				out = defaultOutput(in)
			}
			render := func() {
				if _, err := c.renderFile(cmd.Context(), in, out); err != nil {
					c.logger.Warn("render failed", "path", in, "code", schema.CodeOf(err), "error", err.Error())
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			render()
			c.logger.Info("watching", "path", in, "out", out)
			return watchFile(cmd.Context(), in, watchDebounce, c.logger, render)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (.svg, .png, .jpg)")
	return cmd
}

// watchFile calls onChange after path is written, debounced. The parent
// directory is watched so editors that save by rename are seen too.
// onChange runs on the watch goroutine, so calls never overlap. It returns
// when ctx is done.
func watchFile(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	// fire is nil until the first relevant event arms the timer.
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			onChange()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				fire = timer.C
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err.Error())
		}
	}
}
