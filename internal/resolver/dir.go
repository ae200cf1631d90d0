package resolver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// wireDefinition is the on-disk shape of a resolver definition file: YAML
// or JSON with fields name, code, priority, keyPattern.
type wireDefinition struct {
	Name       string `yaml:"name" json:"name"`
	Code       string `yaml:"code" json:"code"`
	Priority   int    `yaml:"priority" json:"priority"`
	KeyPattern string `yaml:"keyPattern" json:"keyPattern"`
}

// LoadDir reads every *.yaml/*.yml/*.json file in dir and registers a
// Definition for each. resolve supplies the native implementation to bind
// to the code body named by the definition (the registry never executes Code
// itself — only validates it). Files that fail to parse or validate are
// skipped with the error collected, not a fatal abort.
func LoadDir(r *Registry, dir string, resolve func(name string) Func) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("resolver: read dir %q: %w", dir, err)
	}

	var loaded []string
	var errs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		var wd wireDefinition
		wd.Priority = defaultPriority
		if ext == ".json" {
			err = json.Unmarshal(data, &wd)
		} else {
			err = yaml.Unmarshal(data, &wd)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		fn := resolve(wd.Name)
		if fn == nil {
			errs = append(errs, fmt.Sprintf("%s: no native implementation bound for %q", path, wd.Name))
			continue
		}

		def := Definition{Name: wd.Name, Priority: wd.Priority, KeyPattern: wd.KeyPattern, Code: wd.Code}
		if err := r.Register(def, fn); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		loaded = append(loaded, wd.Name)
	}

	if len(errs) > 0 {
		return loaded, fmt.Errorf("resolver: %d definition(s) failed to load: %s", len(errs), strings.Join(errs, "; "))
	}
	return loaded, nil
}

// WatchDir watches dir for created/modified resolver-definition files and
// re-runs LoadDir on each change, retrying transient read failures with
// exponential backoff. It returns a stop function; callers must call it to
// release the underlying fsnotify watcher.
func WatchDir(r *Registry, dir string, resolve func(name string) Func, onReload func([]string, error)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("resolver: create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("resolver: watch dir %q: %w", dir, err)
	}

	done := make(chan struct{})
	go func() {
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				debounce.Reset(50 * time.Millisecond)
			case <-debounce.C:
				reload := func() error {
					loaded, loadErr := LoadDir(r, dir, resolve)
					if onReload != nil {
						onReload(loaded, loadErr)
					}
					return loadErr
				}
				_ = backoff.Retry(reload, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3))
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() error {
		close(done)
		return watcher.Close()
	}, nil
}
