// Package paths centralizes the on-disk layout: where reports and blueprints
// live, which names are safe to turn into file names, and atomic writes.
package paths
