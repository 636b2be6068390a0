package inventory

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher invalidates resolution state when an inventory source file changes
// on disk. Resolved host variables may be cached per pass, but a cache built
// from a stale source must not survive the source changing; callers hook
// their invalidation into OnChange.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func(path string)
	logger   zerolog.Logger
}

// NewWatcher creates a watcher. onChange is called with the changed path for
// every write, create, or remove event on a watched source.
func NewWatcher(onChange func(path string), logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  fw,
		onChange: onChange,
		logger:   logger.With().Str("component", "inventory-watcher").Logger(),
	}, nil
}

// Watch adds source paths to the watch set. Only static and starlark
// sources have files to watch; exec sources are skipped.
func (w *Watcher) Watch(sources ...Source) error {
	for _, src := range sources {
		if src.Type == SourceTypeExec {
			continue
		}
		if err := w.watcher.Add(src.Path); err != nil {
			return NewSourceError(src.label(), "failed to watch inventory source", err)
		}
	}
	return nil
}

// Run dispatches change events until ctx is cancelled or the watcher is
// closed. It is intended to run in its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().
				Str("path", event.Name).
				Str("op", event.Op.String()).
				Msg("Inventory source changed")
			if w.onChange != nil {
				w.onChange(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Inventory watcher error")
		}
	}
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
