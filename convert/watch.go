package convert

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/radovskyb/watcher"
)

// Watch runs ToStatic once, then again whenever the pages, templates, or book
// sources change, until ctx is cancelled. Bursts of changes within one poll
// interval trigger a single run.
func Watch(ctx context.Context, opts Options, interval time.Duration) error {
	opts = opts.WithDefaults()
	log := opts.Log
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	run := func(reason string) {
		report, err := ToStatic(ctx, opts)
		if err != nil {
			log.Error("conversion failed", "trigger", reason, "error", err)
			return
		}
		log.Info("site converted", "trigger", reason, "pages", report.Pages, "books", len(report.Books), "failed", len(report.Failed()))
	}
	run("start")

	w := watcher.New()
	w.SetMaxEvents(1)
	w.IgnoreHiddenFiles(true)

	for _, dir := range []string{opts.PagesDir, opts.TemplatesDir, opts.FilesDir} {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			log.Warn("not watching missing directory", "dir", dir)
			continue
		}
		if err := w.AddRecursive(dir); err != nil {
			return err
		}
		log.Info("watching for changes", "dir", dir)
	}

	go func() {
		for {
			select {
			case ev := <-w.Event:
				run(ev.Path)
			case err := <-w.Error:
				log.Error("watcher error", "error", err)
			case <-w.Closed:
				return
			case <-ctx.Done():
				// Close is a no-op until Start is running.
				w.Wait()
				w.Close()
				return
			}
		}
	}()

	if err := w.Start(interval); err != nil {
		return err
	}
	return ctx.Err()
}
