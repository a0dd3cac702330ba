package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/shared/paths"
)

const (
	// MaxCacheSize defines the maximum number of blueprints held in memory
	MaxCacheSize = 1000
	// EvictionThreshold defines when to trigger eviction (90% of max)
	EvictionThreshold = 900
)

var (
	// ErrNotFound is returned when no blueprint is registered under a name
	ErrNotFound = errors.New("blueprint not registered")
	// ErrConflict is returned when a name is already taken by a different document
	ErrConflict = errors.New("blueprint name already registered")
)

// Entry is a registered blueprint and the source it was parsed from
type Entry struct {
	Name      string               `json:"name"`
	Path      string               `json:"path,omitempty"`
	Format    blueprint.Format     `json:"format"`
	Blueprint *blueprint.Blueprint `json:"blueprint"`
	Source    []byte               `json:"-"`
	Seeded    bool                 `json:"seeded"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Metadata is the listing view of an entry
type Metadata struct {
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	SchemaVersion blueprint.Version `json:"schema_version"`
	Format        blueprint.Format  `json:"format"`
	Hash          string            `json:"hash"`
	Components    int               `json:"components"`
	Bindings      int               `json:"bindings"`
	Seeded        bool              `json:"seeded"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Metadata returns the listing view of the entry
func (e *Entry) Metadata() Metadata {
	return Metadata{
		Name:          e.Name,
		Description:   e.Blueprint.System.Description,
		SchemaVersion: e.Blueprint.System.SchemaVersion,
		Format:        e.Format,
		Hash:          e.Blueprint.Hash,
		Components:    len(e.Blueprint.Components),
		Bindings:      len(e.Blueprint.Bindings),
		Seeded:        e.Seeded,
		UpdatedAt:     e.UpdatedAt,
	}
}

// Stats summarizes the registry
type Stats struct {
	Total       int                      `json:"total"`
	Formats     map[blueprint.Format]int `json:"formats"`
	Components  int                      `json:"components"`
	LastUpdated *time.Time               `json:"last_updated,omitempty"`
}

// Manager holds named blueprints, optionally persisting uploads to a directory
type Manager struct {
	entries    sync.Map // name -> *Entry
	cacheSize  int64
	dir        string
	evictionMu sync.Mutex
	evicting   int32
}

// NewManager creates a registry; uploads are written under dir unless it is empty
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Save registers an entry under its system name. A different document under an
// existing name is a conflict unless replace is set.
func (m *Manager) Save(ctx context.Context, e *Entry, replace bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Blueprint == nil {
		return fmt.Errorf("entry %q has no blueprint", e.Name)
	}
	if e.Name == "" {
		e.Name = e.Blueprint.System.Name
	}
	if err := paths.ValidateName(e.Name); err != nil {
		return fmt.Errorf("blueprint name: %w", err)
	}

	now := time.Now()
	if prev, ok := m.entries.Load(e.Name); ok {
		existing := prev.(*Entry)
		if existing.Blueprint.Hash == e.Blueprint.Hash {
			return nil
		}
		if !replace {
			return fmt.Errorf("%w: %s", ErrConflict, e.Name)
		}
		e.CreatedAt = existing.CreatedAt
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	if m.dir != "" && !e.Seeded && len(e.Source) > 0 {
		path, err := paths.Join(m.dir, e.Name, extensionFor(e.Format))
		if err != nil {
			return err
		}
		if err := m.ensureDir(); err != nil {
			return err
		}
		if err := paths.WriteAtomic(path, e.Source); err != nil {
			return fmt.Errorf("failed to write blueprint: %w", err)
		}
		e.Path = path
	}

	_, existed := m.entries.Swap(e.Name, e)
	if !existed {
		if atomic.AddInt64(&m.cacheSize, 1) > EvictionThreshold {
			m.evictCacheEntries()
		}
	}
	return nil
}

// Load returns the entry registered under name
func (m *Manager) Load(name string) (*Entry, error) {
	if v, ok := m.entries.Load(name); ok {
		return v.(*Entry), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// List returns metadata for every entry, sorted by name
func (m *Manager) List() []Metadata {
	var out []Metadata
	m.entries.Range(func(_, value any) bool {
		out = append(out, value.(*Entry).Metadata())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete unregisters name, removing its file when the registry wrote it
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, ok := m.entries.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	atomic.AddInt64(&m.cacheSize, -1)

	e := v.(*Entry)
	if m.dir != "" && e.Path != "" && !e.Seeded && paths.Within(m.dir, e.Path) {
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete blueprint: %w", err)
		}
	}
	return nil
}

// Stats returns registry statistics
func (m *Manager) Stats() Stats {
	st := Stats{Formats: make(map[blueprint.Format]int)}
	m.entries.Range(func(_, value any) bool {
		e := value.(*Entry)
		st.Total++
		st.Formats[e.Format]++
		st.Components += len(e.Blueprint.Components)
		if st.LastUpdated == nil || e.UpdatedAt.After(*st.LastUpdated) {
			updated := e.UpdatedAt
			st.LastUpdated = &updated
		}
		return true
	})
	return st
}

// evictCacheEntries drops seeded entries first, since they can be reloaded from disk
func (m *Manager) evictCacheEntries() {
	if !atomic.CompareAndSwapInt32(&m.evicting, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&m.evicting, 0)
	m.evictionMu.Lock()
	defer m.evictionMu.Unlock()

	current := atomic.LoadInt64(&m.cacheSize)
	if current <= EvictionThreshold {
		return
	}
	target := current - EvictionThreshold + 100

	var evicted int64
	for _, seededOnly := range []bool{true, false} {
		m.entries.Range(func(key, value any) bool {
			if evicted >= target {
				return false
			}
			if seededOnly && !value.(*Entry).Seeded {
				return true
			}
			if _, ok := m.entries.LoadAndDelete(key); ok {
				evicted++
			}
			return true
		})
	}
	atomic.AddInt64(&m.cacheSize, -evicted)
}

func extensionFor(f blueprint.Format) string {
	switch f {
	case blueprint.FormatJSON:
		return ".json"
	case blueprint.FormatTOML:
		return ".toml"
	case blueprint.FormatHCL:
		return ".hcl"
	default:
		return ".yaml"
	}
}

func (m *Manager) ensureDir() error {
	if m.dir == "" {
		return nil
	}
	return os.MkdirAll(filepath.Clean(m.dir), 0o755)
}
