// Package registry keeps named blueprints available for repeat runs.
//
// Components:
//   - Manager: blueprint CRUD keyed by system name, with an in-memory cache
//   - Seeder: loads blueprint files from a directory tree on startup
//
// Seeded entries are read-only copies of files on disk. Uploaded entries
// are written to the registry directory in their original format so a
// restart seeds them again.
//
// Example Usage:
//
//	manager := registry.NewManager(cfg.Storage.BlueprintDir)
//	res, err := registry.NewSeeder(manager, parser, cfg.Storage.BlueprintDir, logger).Seed(ctx)
//	entry, err := manager.Load("todo")
package registry
