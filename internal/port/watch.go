package port

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kernelport/internal/corpus"
	"kernelport/internal/logging"
)

// DefaultDebounce batches the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reruns a port whenever a corpus source changes. Reruns never
// overlap: events arriving during a run schedule exactly one more.
type Watcher struct {
	root     string
	debounce time.Duration
	run      func(ctx context.Context) error
	logger   *zap.Logger
}

// NewWatcher creates a watcher for root. A non-positive debounce uses
// DefaultDebounce.
func NewWatcher(root string, debounce time.Duration, run func(ctx context.Context) error, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		run:      run,
		logger:   logging.For(logger, logging.CategoryPort),
	}
}

// Watch blocks until ctx is done or a rerun fails. Cancellation is not an
// error.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("Watching corpus", zap.String("root", w.root))

	trigger := make(chan struct{}, 1)
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		for {
			select {
			case <-egCtx.Done():
				return nil
			case event, ok := <-fw.Events:
				if !ok {
					return nil
				}
				if !w.relevant(fw, event) {
					continue
				}
				w.logger.Debug("Corpus changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
				select {
				case trigger <- struct{}{}:
				default:
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return nil
				}
				w.logger.Warn("Watcher error", zap.Error(err))
			}
		}
	})

	eg.Go(func() error {
		timer := time.NewTimer(w.debounce)
		timer.Stop()
		defer timer.Stop()
		for {
			select {
			case <-egCtx.Done():
				return nil
			case <-trigger:
				timer.Reset(w.debounce)
			case <-timer.C:
				if err := w.run(egCtx); err != nil {
					if egCtx.Err() != nil {
						return nil
					}
					return err
				}
			}
		}
	})

	return eg.Wait()
}

// relevant reports whether event should trigger a rerun. New directories are
// added to the watch as a side effect.
func (w *Watcher) relevant(fw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if hidden(event.Name) {
		return false
	}
	if event.Op&fsnotify.Create != 0 && w.addTree(fw, event.Name) == nil {
		// A new directory may already contain tests.
		return true
	}
	return strings.HasSuffix(event.Name, corpus.SourceExt)
}

// addTree watches every non-hidden directory under dir. A path that is not a
// directory is an error so callers can tell files apart.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if path == dir {
				return fs.ErrInvalid
			}
			return nil
		}
		if path != dir && hidden(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
