package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
)

// Seeder loads blueprint files from a directory tree into the registry
type Seeder struct {
	manager *Manager
	parser  *blueprint.Parser
	root    string
	pattern string
	logger  *zap.Logger
}

// SeedResult counts the files the seeder visited
type SeedResult struct {
	Loaded int      `json:"loaded"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// NewSeeder creates a seeder for root using the default file pattern
func NewSeeder(manager *Manager, parser *blueprint.Parser, root string, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{manager: manager, parser: parser, root: root, pattern: blueprint.DefaultPattern, logger: logger}
}

// WithPattern restricts seeding to files matching a doublestar pattern
func (s *Seeder) WithPattern(pattern string) *Seeder {
	out := *s
	out.pattern = pattern
	return &out
}

// Seed parses every matching file. Bad files are counted and logged; only a
// failed directory walk is an error.
func (s *Seeder) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	if s.root == "" {
		return res, nil
	}
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		s.logger.Warn("Blueprint directory not found", zap.String("dir", s.root))
		return res, nil
	}
	if err := s.manager.ensureDir(); err != nil {
		return res, err
	}

	files, err := blueprint.Discover(ctx, s.root, s.pattern)
	if err != nil {
		return res, err
	}

	for _, rel := range files {
		if err := s.load(ctx, filepath.Join(s.root, filepath.FromSlash(rel))); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", rel, err))
			s.logger.Warn("Failed to load blueprint", zap.String("file", rel), zap.Error(err))
			continue
		}
		res.Loaded++
		s.logger.Debug("Loaded blueprint", zap.String("file", rel))
	}

	s.logger.Info("Seeding complete",
		zap.String("dir", s.root),
		zap.Int("loaded", res.Loaded),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (s *Seeder) load(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	format := blueprint.FormatFromPath(path)
	bp, err := s.parser.Parse(content, format)
	if err != nil {
		return err
	}
	return s.manager.Save(ctx, &Entry{
		Name:      bp.System.Name,
		Path:      path,
		Format:    format,
		Blueprint: bp,
		Source:    content,
		Seeded:    true,
	}, false)
}
