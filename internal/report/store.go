package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
	"github.com/GriffinCanCode/bpforge/internal/shared/id"
	"github.com/GriffinCanCode/bpforge/internal/shared/paths"
)

const extension = ".json.zst"

// ErrNotFound is returned when no report exists for a run id
var ErrNotFound = errors.New("report not found")

// Meta summarizes a stored report
type Meta struct {
	RunID          id.RunID  `json:"run_id"`
	System         string    `json:"system"`
	OverallPassed  bool      `json:"overall_passed"`
	AggregateScore float64   `json:"aggregate_score"`
	Components     int       `json:"components"`
	Escalated      int       `json:"escalated"`
	StartedAt      time.Time `json:"started_at"`
	Size           int       `json:"size"`
	StoredSize     int       `json:"stored_size"`
}

func metaOf(res *pipeline.Result) Meta {
	return Meta{
		RunID:          res.RunID,
		System:         res.System,
		OverallPassed:  res.Summary.OverallPassed,
		AggregateScore: res.Summary.AggregateScore,
		Components:     len(res.Components),
		Escalated:      len(res.Summary.EscalatedComponents),
		StartedAt:      res.StartedAt,
	}
}

// StoreStats describes the store contents
type StoreStats struct {
	Reports   int        `json:"reports"`
	Bytes     int        `json:"bytes"`
	LastSaved *time.Time `json:"last_saved,omitempty"`
}

// Store keeps run reports on disk with an in-memory cache. An empty
// directory keeps reports in memory only.
type Store struct {
	dir     string
	reports sync.Map // id.RunID -> *pipeline.Result
	metas   sync.Map // id.RunID -> Meta
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu        sync.RWMutex
	lastSaved *time.Time
}

// NewStore opens a store rooted at dir, creating it when needed
func NewStore(dir string) (*Store, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create report directory: %w", err)
		}
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Store{dir: dir, encoder: enc, decoder: dec}, nil
}

// Close releases the codec resources
func (s *Store) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}

// Save persists a result
func (s *Store) Save(ctx context.Context, res *pipeline.Result) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	data, err := sonic.Marshal(res)
	if err != nil {
		return Meta{}, fmt.Errorf("failed to marshal report %s: %w", res.RunID, err)
	}
	compressed := s.encoder.EncodeAll(data, make([]byte, 0, len(data)/4))

	meta := metaOf(res)
	meta.Size = len(data)
	meta.StoredSize = len(compressed)

	if s.dir != "" {
		if err := paths.WriteAtomic(s.path(res.RunID), compressed); err != nil {
			return Meta{}, fmt.Errorf("failed to write report %s: %w", res.RunID, err)
		}
	}

	s.reports.Store(res.RunID, res)
	s.metas.Store(res.RunID, meta)

	now := time.Now()
	s.mu.Lock()
	s.lastSaved = &now
	s.mu.Unlock()
	return meta, nil
}

// Load returns the result for a run
func (s *Store) Load(ctx context.Context, runID id.RunID) (*pipeline.Result, error) {
	if cached, ok := s.reports.Load(runID); ok {
		return cached.(*pipeline.Result), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.dir == "" || !validRunID(runID) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}

	compressed, err := os.ReadFile(s.path(runID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", runID, err)
	}
	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress report %s: %w", runID, err)
	}

	var res pipeline.Result
	if err := sonic.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report %s: %w", runID, err)
	}
	if res.RunID == "" {
		return nil, fmt.Errorf("report %s has empty run id", runID)
	}

	meta := metaOf(&res)
	meta.Size, meta.StoredSize = len(data), len(compressed)
	s.reports.Store(runID, &res)
	s.metas.Store(runID, meta)
	return &res, nil
}

// List returns stored reports, newest first. Reports on disk that were not
// saved by this process are loaded on demand.
func (s *Store) List(ctx context.Context) ([]Meta, error) {
	if s.dir != "" {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list reports: %w", err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, extension) {
				continue
			}
			runID := id.RunID(strings.TrimSuffix(name, extension))
			if _, ok := s.metas.Load(runID); ok {
				continue
			}
			if _, err := s.Load(ctx, runID); err != nil {
				return nil, err
			}
		}
	}

	var out []Meta
	s.metas.Range(func(_, value any) bool {
		out = append(out, value.(Meta))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].RunID > out[j].RunID })
	return out, nil
}

// Delete removes a report
func (s *Store) Delete(runID id.RunID) error {
	_, known := s.metas.LoadAndDelete(runID)
	s.reports.Delete(runID)
	if s.dir != "" && validRunID(runID) {
		err := os.Remove(s.path(runID))
		switch {
		case err == nil:
			known = true
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("failed to delete report %s: %w", runID, err)
		}
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// Stats returns store statistics
func (s *Store) Stats() StoreStats {
	var st StoreStats
	s.metas.Range(func(_, value any) bool {
		st.Reports++
		st.Bytes += value.(Meta).StoredSize
		return true
	})
	s.mu.RLock()
	st.LastSaved = s.lastSaved
	s.mu.RUnlock()
	return st
}

func (s *Store) path(runID id.RunID) string {
	return filepath.Join(s.dir, runID.String()+extension)
}

// validRunID rejects ids that could escape the store directory
func validRunID(runID id.RunID) bool {
	return id.IsValid(runID.String()) && paths.ValidateName(runID.String()) == nil && !strings.Contains(runID.String(), ".")
}
