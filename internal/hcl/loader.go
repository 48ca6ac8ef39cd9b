package hcl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/cashgrid/internal/config"
	"github.com/vk/cashgrid/internal/ctxlog"
	"github.com/vk/cashgrid/internal/fsutil"
	"github.com/vk/cashgrid/internal/schema"
)

// Extension is the suffix of project files discovered in a directory.
const Extension = ".hcl"

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL project loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every project file under path and translates the merged
// blocks into a config.Project. Relative paths inside a file resolve
// against that file's directory.
func (l *Loader) Load(ctx context.Context, path string) (*config.Project, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	files, dir, err := findProjectFiles(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered project files.", "count", len(files))

	parser := hclparse.NewParser()
	t := newTranslator(ctx, dir)
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root schema.File
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		if err := t.translateFile(filepath.Dir(file), &root); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}

	project, err := t.finish()
	if err != nil {
		return nil, err
	}
	logger.Debug("HCL loading complete.",
		"models", len(project.Models),
		"assumptions", len(project.Assumptions),
		"expenses", len(project.Expenses),
		"columns", len(project.Columns),
	)
	return project, nil
}

// findProjectFiles returns the project files at path together with the
// project directory. A file path is used as is; a directory is searched
// recursively for Extension files.
func findProjectFiles(path string) ([]string, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("error accessing project path %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, filepath.Dir(path), nil
	}
	files, err := fsutil.FindFilesByExtension(path, Extension)
	if err != nil {
		return nil, "", fmt.Errorf("error searching project directory %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, "", errors.New("no " + Extension + " files found in " + path)
	}
	return files, path, nil
}
