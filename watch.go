package updates

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the event bursts editors produce on save.
const watchDebounce = 500 * time.Millisecond

// watchContent re-syncs the content directory when post sources change.
// Returns a stop function.
func (a *App) watchContent() (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(a.Config.ContentDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", a.Config.ContentDir, err)
	}

	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				// Write and Create cover direct saves as well as the
				// write-temp-then-rename dance editors do.
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if !isPostSource(event.Name) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(watchDebounce, func() {
					if err := a.SyncContent(); err != nil {
						a.Echo.Logger.Errorf("content: resync: %v", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				a.Echo.Logger.Errorf("content: watcher: %v", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}

func isPostSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".mdx"
}
