// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/hlscore/internal/log"
)

// Load reads a YAML tunables file at path, overlaying it onto
// DefaultTunables so an omitted field keeps its default rather than
// zeroing out.
func Load(path string) (Tunables, error) {
	t := DefaultTunables()
	data, err := os.ReadFile(path)
	if err != nil {
		return Tunables{}, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tunables{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return t, nil
}

// Watcher hot-reloads a tunables file on write, mirroring the teacher's
// fsnotify-backed config manager.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	onChange func(Tunables)
}

// Watch starts watching path for writes and invokes onChange with the
// freshly parsed Tunables on every change. Parse errors are logged and
// skipped rather than propagated, so a transient partial write (editor
// save) never crashes the watcher.
func Watch(path string, onChange func(Tunables)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %q: %w", path, err)
	}

	cw := &Watcher{watcher: w, path: path, onChange: onChange}
	go cw.run()
	return cw, nil
}

func (w *Watcher) run() {
	logger := log.WithComponent("config")
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			t, err := Load(w.path)
			if err != nil {
				logger.Warn().Err(err).Str("path", w.path).Msg("config reload failed, keeping previous tunables")
				continue
			}
			w.onChange(t)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
