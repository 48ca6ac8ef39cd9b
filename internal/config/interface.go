package config

import "context"

// Loader is the interface for a format-specific project loader.
type Loader interface {
	// Load reads the project at path, which is a single file or a directory
	// of project files, and translates it into the format-agnostic model.
	Load(ctx context.Context, path string) (*Project, error)
}
