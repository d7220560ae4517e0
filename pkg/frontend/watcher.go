package frontend

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/logger"
	"github.com/retrohost/retrohost/pkg/os"
)

// optionsWatcher reloads the core options when their file is edited.
// The folder is watched instead of the file because the file is
// replaced by a rename on every save.
type optionsWatcher struct {
	path    string
	opts    *libretro.OptionStore
	watcher *fsnotify.Watcher
	changed func()
	done    sync.WaitGroup
	log     *logger.Logger
}

func watchOptions(path string, opts *libretro.OptionStore, changed func(), log *logger.Logger) (*optionsWatcher, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err = os.CheckCreateDir(dir); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err = w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	ow := &optionsWatcher{path: path, opts: opts, watcher: w, changed: changed, log: log}
	ow.done.Add(1)
	go ow.watch()
	log.Info().Msgf("Watching %v", path)
	return ow, nil
}

func (w *optionsWatcher) watch() {
	defer w.done.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			changed, err := w.opts.Reload(w.path)
			if err != nil {
				w.log.Warn().Err(err).Msg("options reload")
				continue
			}
			if changed {
				w.log.Info().Msg("Core options changed")
				if w.changed != nil {
					w.changed()
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("options watcher")
		}
	}
}

func (w *optionsWatcher) Close() error {
	err := w.watcher.Close()
	w.done.Wait()
	return err
}
