// Package watch recompiles a signature/code pair whenever either file
// changes, for `cmd/calculon watch`. It layers a live fsnotify feed on
// top of internal/cache's content-hash bookkeeping: fsnotify tells us a
// file moved, the cache tells us whether its content actually did (an
// editor's save-via-rename can fire several events for one real edit).
// When either file cannot be read (briefly absent mid-save), a
// backoff.Backoff delay is slept and that event is dropped; the next
// filesystem event triggers the next attempt. A compile that fails, for
// instance on a half-written file, is reported to the callback without
// any delay or retry.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jpillora/backoff"

	"calculon/compiler"
	"calculon/internal/cache"
)

// Result is delivered to the callback after every recompilation attempt,
// successful or not. Fn is nil when Err is non-nil.
type Result struct {
	Fn  *compiler.Function
	Err error
}

// Run watches sigPath and codePath and invokes on with a fresh Result
// each time their combined content changes. Run returns only when the
// watcher reports an error or its channels close; it takes no context.
// Callers that want to stop watching should run it in a goroutine and
// let the process exit.
func Run(c *compiler.Compiler, sigPath, codePath, cachePath string, on func(Result)) error {
	cc, err := cache.Load(cachePath)
	if err != nil {
		return fmt.Errorf("watch: loading cache: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()

	// Watch the containing directories, not the files themselves: an
	// editor that saves via rename replaces the inode, and a watch on
	// the old inode never sees the replacement.
	dirs := map[string]bool{filepath.Dir(sigPath): true, filepath.Dir(codePath): true}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch: %w", err)
		}
	}

	bo := &backoff.Backoff{Min: 50 * time.Millisecond, Max: 2 * time.Second, Factor: 2}

	recompile := func() {
		sigChanged, errSig := cc.NeedsRegeneration(sigPath)
		codeChanged, errCode := cc.NeedsRegeneration(codePath)
		if errSig != nil || errCode != nil {
			// File mid-write or briefly absent; wait a backoff delay and
			// report nothing. No retry is made here: the next filesystem
			// event triggers the next attempt.
			time.Sleep(bo.Duration())
			return
		}
		if !sigChanged && !codeChanged {
			return
		}
		bo.Reset()
		_ = cc.Save()

		fn, err := compileFiles(c, sigPath, codePath)
		on(Result{Fn: fn, Err: err})
	}

	recompile()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != sigPath && ev.Name != codePath {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			recompile()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		}
	}
}

func compileFiles(c *compiler.Compiler, sigPath, codePath string) (*compiler.Function, error) {
	sig, err := os.Open(sigPath)
	if err != nil {
		return nil, err
	}
	defer sig.Close()

	code, err := os.Open(codePath)
	if err != nil {
		return nil, err
	}
	defer code.Close()

	return c.Compile(sig, code)
}
