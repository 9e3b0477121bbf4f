package security

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// levelFile is the on-disk shape of an operator-supplied hardening bundle
// override file.
type levelFile struct {
	Levels map[Level]struct {
		MemoryMB        int      `yaml:"memory_mb"`
		CPUQuota        float64  `yaml:"cpu_quota"`
		PIDLimit        int      `yaml:"pid_limit"`
		CapabilityReAdd []string `yaml:"capability_readd,omitempty"`
		ReadOnlyRootFS  bool     `yaml:"read_only_root_fs"`
		OpenFilesLimit  int      `yaml:"open_files_limit"`
		UserProcsLimit  int      `yaml:"user_procs_limit"`
	} `yaml:"levels"`
}

// LevelStore holds the currently active hardening-bundle overrides and,
// when configured with a file path, hot-reloads them on change via a
// debounced fsnotify watch.
type LevelStore struct {
	mu        sync.RWMutex
	overrides map[Level]Descriptor
	path      string
	logger    *log.Logger
	watcher   *fsnotify.Watcher
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewLevelStore creates a LevelStore. If path is empty, the store only
// ever serves the built-in defaults.
func NewLevelStore(path string, logger *log.Logger) *LevelStore {
	if logger == nil {
		logger = log.New(os.Stdout, "[security] ", log.LstdFlags|log.Lmsgprefix)
	}
	s := &LevelStore{
		overrides: map[Level]Descriptor{},
		path:      path,
		logger:    logger,
	}
	if path != "" {
		if err := s.reload(); err != nil {
			logger.Printf("warning: could not load hardening bundle file %s: %v (using built-in defaults)", path, err)
		}
	}
	return s
}

// Descriptor returns the hardening descriptor currently in effect for
// (level, lang).
func (s *LevelStore) Descriptor(level Level, lang langtype.Language) Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BuildDescriptor(level, lang, s.overrides)
}

// Watch begins watching the bundle file for changes, debouncing reloads
// so a burst of writes from an editor triggers one reload, not several.
// It is a no-op if no file path was configured.
func (s *LevelStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	s.watcher = watcher

	if err := watcher.Add(s.path); err != nil {
		dir := filepath.Dir(s.path)
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch bundle file/dir: %w", err)
		}
		s.logger.Printf("watching directory %s for hardening-bundle changes", dir)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.watchLoop(watchCtx)
	return nil
}

// Stop halts the watch loop, if running.
func (s *LevelStore) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.wg.Wait()
}

func (s *LevelStore) watchLoop(ctx context.Context) {
	defer s.wg.Done()

	var debounce *time.Timer
	const debounceWindow = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, func() {
				if err := s.reload(); err != nil {
					s.logger.Printf("error reloading hardening bundle: %v", err)
				} else {
					s.logger.Printf("reloaded hardening bundle from %s", s.path)
				}
			})
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Printf("hardening-bundle watcher error: %v", err)
		}
	}
}

func (s *LevelStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read bundle file: %w", err)
	}

	var parsed levelFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse bundle file: %w", err)
	}

	overrides := map[Level]Descriptor{}
	for level, raw := range parsed.Levels {
		base := levelDefaults[level]
		base.Level = level
		if raw.MemoryMB > 0 {
			base.MemoryMB = raw.MemoryMB
		}
		if raw.CPUQuota > 0 {
			base.CPUQuota = raw.CPUQuota
		}
		if raw.PIDLimit > 0 {
			base.PIDLimit = raw.PIDLimit
		}
		if len(raw.CapabilityReAdd) > 0 {
			base.Capabilities.ReAdd = raw.CapabilityReAdd
		}
		base.ReadOnlyRootFS = raw.ReadOnlyRootFS
		if raw.OpenFilesLimit > 0 {
			base.Ulimits.OpenFiles = raw.OpenFilesLimit
		}
		if raw.UserProcsLimit > 0 {
			base.Ulimits.UserProcs = raw.UserProcsLimit
		}
		overrides[level] = base
	}

	s.mu.Lock()
	s.overrides = overrides
	s.mu.Unlock()
	return nil
}
