package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ActorConfigChangeCallback is called with the merged actor-config set
// before and after a reload.
type ActorConfigChangeCallback func(oldConfig, newConfig ActorConfigSet)

// ActorConfigWatcher watches an actors.json primary file plus an
// optional secondary overlay for changes, reloading and merging both on
// any write (spec §4.7: "watches both files for changes"). It mirrors
// Watcher's fsnotify-plus-debounce loop, generalized from one
// application-config file to the primary/secondary pair LoadActorConfig
// already knows how to merge.
type ActorConfigWatcher struct {
	primary   string
	secondary string

	configMu sync.RWMutex
	config   ActorConfigSet

	fsWatcher *fsnotify.Watcher

	callbacksMu sync.RWMutex
	callbacks   []ActorConfigChangeCallback

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewActorConfigWatcher loads primary/secondary once and prepares a
// watcher for both; Start begins actually watching.
func NewActorConfigWatcher(primary, secondary string) (*ActorConfigWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file system watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &ActorConfigWatcher{
		primary:   primary,
		secondary: secondary,
		fsWatcher: fsWatcher,
		ctx:       ctx,
		cancel:    cancel,
	}

	config, err := LoadActorConfig(primary, secondary)
	if err != nil {
		fsWatcher.Close()
		cancel()
		return nil, fmt.Errorf("failed to load initial actor config: %w", err)
	}
	w.config = config

	return w, nil
}

// Start begins watching whichever of primary/secondary currently exist.
// A file that doesn't exist yet is simply not watched; Reload can be
// called again once it's created.
func (w *ActorConfigWatcher) Start() error {
	for _, path := range []string{w.primary, w.secondary} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch actor config file %s: %w", path, err)
		}
	}

	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop stops watching and releases the underlying fsnotify watcher.
func (w *ActorConfigWatcher) Stop() error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// Config returns the most recently loaded actor-config set.
func (w *ActorConfigWatcher) Config() ActorConfigSet {
	w.configMu.RLock()
	defer w.configMu.RUnlock()
	return w.config
}

// OnChange registers a callback invoked after every successful reload.
func (w *ActorConfigWatcher) OnChange(callback ActorConfigChangeCallback) {
	w.callbacksMu.Lock()
	defer w.callbacksMu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Reload manually reloads and re-merges both files.
func (w *ActorConfigWatcher) Reload() error {
	return w.reload()
}

func (w *ActorConfigWatcher) watchLoop() {
	defer w.wg.Done()

	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-w.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Name != w.primary && event.Name != w.secondary {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := w.reload(); err != nil {
						log.Printf("failed to reload actor config: %v", err)
					}
				})

			} else if event.Op&fsnotify.Remove == fsnotify.Remove ||
				event.Op&fsnotify.Rename == fsnotify.Rename {

				log.Printf("actor config file %s was removed or renamed", event.Name)
				name := event.Name
				time.AfterFunc(1*time.Second, func() {
					w.fsWatcher.Add(name)
				})
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("actor config watcher error: %v", err)
		}
	}
}

func (w *ActorConfigWatcher) reload() error {
	newConfig, err := LoadActorConfig(w.primary, w.secondary)
	if err != nil {
		return fmt.Errorf("failed to reload actor config: %w", err)
	}

	w.configMu.Lock()
	oldConfig := w.config
	w.config = newConfig
	w.configMu.Unlock()

	w.notifyCallbacks(oldConfig, newConfig)
	log.Printf("actor config reloaded from %s", w.primary)
	return nil
}

func (w *ActorConfigWatcher) notifyCallbacks(oldConfig, newConfig ActorConfigSet) {
	w.callbacksMu.RLock()
	callbacks := make([]ActorConfigChangeCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.callbacksMu.RUnlock()

	for _, callback := range callbacks {
		go func(cb ActorConfigChangeCallback) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("actor config change callback panicked: %v", r)
				}
			}()
			cb(oldConfig, newConfig)
		}(callback)
	}
}
