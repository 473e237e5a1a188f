package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/chazu/myl/compiler"
	"github.com/chazu/myl/compiler/hash"
	"github.com/chazu/myl/manifest"
)

// Debounce duration: editors often write a file in several steps.
const watchDebounce = 100 * time.Millisecond

// scriptWatcher re-runs a script when it changes. Saves that leave the
// program's content hash unchanged, such as comment or whitespace edits,
// do not trigger a run.
type scriptWatcher struct {
	cli      *cli
	m        *manifest.Manifest
	path     string
	lastHash [32]byte
	hashed   bool
}

func newScriptWatcher(c *cli, m *manifest.Manifest, path string) (*scriptWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &scriptWatcher{cli: c, m: m, path: abs}, nil
}

// reload runs the script in a fresh session unless its hash matches the
// last run. It reports whether the script ran and the exit code of the run.
func (w *scriptWatcher) reload() (bool, int) {
	source, err := os.ReadFile(w.path)
	if err != nil {
		fmt.Fprintf(w.cli.stderr, "myl: %v\n", err)
		return false, exitIO
	}

	prog, errs := compiler.Parse(string(source))
	if len(errs) > 0 {
		w.hashed = false
		return true, w.cli.report(errs)
	}

	h := hash.HashProgram(prog)
	if w.hashed && h == w.lastHash {
		log.Noticef("%s unchanged (%s), not re-running", filepath.Base(w.path), hash.Short(h))
		return false, exitOK
	}
	w.lastHash, w.hashed = h, true

	log.Noticef("running %s (%s)", filepath.Base(w.path), hash.Short(h))
	_, err = w.cli.newSession(w.m, false).Run(string(source))
	return true, w.cli.report(err)
}

// loop waits for changes to the script and reloads it once the events
// have been quiet for the debounce period.
func (w *scriptWatcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, debounce time.Duration) {
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debugf("change event: %s", event)
			timer.Reset(debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-errs:
			if !ok {
				return
			}
			log.Errorf("watcher error: %v", err)
		}
	}
}

func (c *cli) watchCommand(path string, m *manifest.Manifest) int {
	w, err := newScriptWatcher(c, m, path)
	if err != nil {
		fmt.Fprintf(c.stderr, "myl: %v\n", err)
		return exitIO
	}
	if _, err := os.Stat(w.path); err != nil {
		fmt.Fprintf(c.stderr, "myl: %v\n", err)
		return exitIO
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(c.stderr, "myl: %v\n", err)
		return exitIO
	}
	defer fsw.Close()

	// Watch the directory so replace-on-save editors keep being seen.
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		fmt.Fprintf(c.stderr, "myl: cannot watch %s: %v\n", dir, err)
		return exitIO
	}
	log.Infof("watching %s", w.path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.reload()
	w.loop(ctx, fsw.Events, fsw.Errors, watchDebounce)
	return exitOK
}
