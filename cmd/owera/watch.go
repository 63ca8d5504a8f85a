package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/owera/internal/services"
)

const watchDebounce = 500 * time.Millisecond

func newWatchCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "watch --file path",
		Short: "Regenerate the project whenever the description file changes",
		Long: `Run once, then rerun every time the file is written. A change during a run
cancels it; its partial output is still written before the next run starts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.file == "" {
				return errors.New("--file is required")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{configPath: g.configPath, offline: g.offline})
			if err != nil {
				return err
			}
			defer a.close(ctx)

			req := services.Request{OutputDir: f.out, MaxCycles: f.maxCycles, Parallelism: f.parallel}
			return watchFile(ctx, f.file, watchDebounce, func(runCtx context.Context) {
				p, err := loadProject(runCtx, a.registry.Parser(), f.file, nil)
				if err != nil {
					a.logger.Warn(runCtx, "specification not loaded", zap.String("path", f.file), zap.Error(err))
					return
				}
				req.Progress = logProgress(runCtx, a.logger)
				exec, err := services.Execute(runCtx, a.registry, p, req)
				if exec != nil {
					printSummary(cmd.OutOrStdout(), exec)
				}
				if err != nil && !errors.Is(err, context.Canceled) {
					a.logger.Warn(runCtx, "run failed", zap.Error(err))
				}
			})
		},
	}
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "description file to watch")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory (default output.dir)")
	cmd.Flags().IntVar(&f.maxCycles, "max-cycles", 0, "cycle ceiling (default orchestrator.max_cycles)")
	cmd.Flags().IntVar(&f.parallel, "parallel", 0, "features dispatched concurrently (default orchestrator.parallelism)")
	return cmd
}

// watchFile calls fn once immediately and again after every burst of writes
// to path. A new burst cancels the context of the previous call and waits
// for it to return. It blocks until ctx is done.
func watchFile(ctx context.Context, path string, debounce time.Duration, fn func(context.Context)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file instead of
	// writing it in place.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var (
		wg     sync.WaitGroup
		cancel context.CancelFunc = func() {}
	)
	start := func() {
		cancel()
		wg.Wait()
		var runCtx context.Context
		runCtx, cancel = context.WithCancel(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(runCtx)
		}()
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	start()

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)
		case <-timer.C:
			start()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher: %w", err)
		}
	}
}
