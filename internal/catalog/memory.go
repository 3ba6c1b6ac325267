package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"shopassist/internal/domain"
)

// reloadDebounce coalesces bursts of writes to the seed file into one reload.
var reloadDebounce = 100 * time.Millisecond

// seedFile is the YAML layout of a catalog seed:
//
//	products:
//	  - name: GoPro Hero 11
//	    unit_price: 350
//	    stock: 12
type seedFile struct {
	Products []domain.Product `yaml:"products"`
}

// MemoryStore keeps the catalog in memory. It can be loaded from a YAML seed
// file and reload that file when it changes on disk.
type MemoryStore struct {
	mu       sync.RWMutex
	products []domain.Product

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewMemoryStore returns a store holding a copy of products.
func NewMemoryStore(products []domain.Product) *MemoryStore {
	s := &MemoryStore{}
	s.Replace(products)
	return s
}

// Replace swaps the whole catalog.
func (s *MemoryStore) Replace(products []domain.Product) {
	cp := make([]domain.Product, len(products))
	copy(cp, products)
	s.mu.Lock()
	s.products = cp
	s.mu.Unlock()
}

// LoadFile parses a YAML seed file and replaces the catalog with it. The
// current catalog is kept when the file is invalid.
func (s *MemoryStore) LoadFile(path string) error {
	products, err := ReadSeedFile(path)
	if err != nil {
		return err
	}
	s.Replace(products)
	return nil
}

// ReadSeedFile parses and validates a YAML seed file.
func ReadSeedFile(path string) ([]domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse catalog seed %s: %w", path, err)
	}
	for i, p := range seed.Products {
		if err := validateProduct(p); err != nil {
			return nil, fmt.Errorf("catalog seed %s: product %d: %w", path, i+1, err)
		}
	}
	return seed.Products, nil
}

// WriteSeedFile writes products as a YAML seed file.
func WriteSeedFile(path string, products []domain.Product) error {
	data, err := yaml.Marshal(seedFile{Products: products})
	if err != nil {
		return fmt.Errorf("encode catalog seed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create seed dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func validateProduct(p domain.Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errors.New("name must not be empty")
	case p.UnitPrice < 0:
		return fmt.Errorf("%s: unit_price must not be negative", p.Name)
	case p.Stock < 0:
		return fmt.Errorf("%s: stock must not be negative", p.Name)
	}
	return nil
}

func (s *MemoryStore) FindByNameSubstring(ctx context.Context, term string, limit int) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, ok := normalizeLimit(limit)
	if !ok {
		return nil, nil
	}
	needle := strings.ToLower(term)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Product
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, ok := normalizeLimit(limit)
	if !ok {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(limit, len(s.products))
	out := make([]domain.Product, n)
	copy(out, s.products[:n])
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// Watch reloads path whenever it is written or recreated. The parent
// directory is watched so editors that replace the file are handled.
func (s *MemoryStore) Watch(path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		return errors.New("catalog: already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog watch: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("catalog watch %s: %w", path, err)
	}
	s.watcher = watcher
	s.done = make(chan struct{})
	go s.watchLoop(watcher, s.done, path, logger)
	return nil
}

func (s *MemoryStore) watchLoop(watcher *fsnotify.Watcher, done <-chan struct{}, path string, logger *slog.Logger) {
	target := filepath.Base(path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := s.LoadFile(path); err != nil {
					logger.Warn("catalog reload failed, keeping previous catalog", "path", path, "error", err)
					return
				}
				logger.Info("catalog reloaded", "path", path)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("catalog watcher error", "error", err)
		}
	}
}

// Close stops watching. Safe to call when not watching.
func (s *MemoryStore) Close(context.Context) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	return err
}
