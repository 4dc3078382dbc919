// Package hcl implements the config.Loader interface for HCL worker
// configuration files.
package hcl

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/tenantscope/internal/config"
	"github.com/vk/tenantscope/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot mirrors the top-level blocks of a worker configuration file.
type fileRoot struct {
	Worker      *workerBlock      `hcl:"worker,block"`
	Resettables []resettableBlock `hcl:"resettable,block"`
	Singletons  []singletonBlock  `hcl:"singleton,block"`
	Tenants     []tenantBlock     `hcl:"tenant,block"`
	CodeCache   *codeCacheBlock   `hcl:"code_cache,block"`
}

type workerBlock struct {
	ForceGC *bool `hcl:"force_gc,optional"`
}

type resettableBlock struct {
	Name    string    `hcl:"name,label"`
	Default cty.Value `hcl:"default"`
}

type singletonBlock struct {
	Key   string `hcl:"key,label"`
	Scope string `hcl:"scope"`
}

type tenantBlock struct {
	Key        string            `hcl:"key,label"`
	Hosts      []string          `hcl:"hosts"`
	Attributes map[string]string `hcl:"attributes,optional"`
}

type codeCacheBlock struct {
	Enabled bool     `hcl:"enabled"`
	Paths   []string `hcl:"paths,optional"`
}

// Loader loads worker configuration from .hcl files or directories of them.
type Loader struct{}

// NewLoader creates an HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load implements config.Loader. Every given path may be a single file or a
// directory searched recursively for .hcl files; all parsed blocks merge
// into one model, with duplicate declarations rejected.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	model := config.NewModel()
	parser := hclparse.NewParser()

	var files []string
	for _, path := range paths {
		found, err := findConfigFiles(path)
		if err != nil {
			return nil, fmt.Errorf("locating config files under %s: %w", path, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl configuration files found in %v", paths)
	}
	logger.Debug("Found HCL configuration files.", "files", files)

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing %s: %w", file, diags)
		}
		if err := mergeFile(model, hclFile.Body, file); err != nil {
			return nil, err
		}
		logger.Debug("Loaded configuration file.", "file", file)
	}

	logger.Debug("Configuration loaded into unified model.",
		"resettables", len(model.Resettables), "singletons", len(model.Singletons), "tenants", len(model.Tenants))
	return model, nil
}

// mergeFile decodes one file's blocks into the shared model.
func mergeFile(model *config.Model, body hcl.Body, file string) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("decoding %s: %w", file, diags)
	}

	if root.Worker != nil && root.Worker.ForceGC != nil {
		model.Worker.ForceGC = *root.Worker.ForceGC
	}

	for _, r := range root.Resettables {
		if _, exists := model.Resettables[r.Name]; exists {
			return fmt.Errorf("%s: resettable '%s' declared more than once", file, r.Name)
		}
		model.Resettables[r.Name] = r.Default
	}

	for _, s := range root.Singletons {
		if _, exists := model.Singletons[s.Key]; exists {
			return fmt.Errorf("%s: singleton '%s' declared more than once", file, s.Key)
		}
		model.Singletons[s.Key] = s.Scope
	}

	for _, t := range root.Tenants {
		model.Tenants = append(model.Tenants, &config.TenantDef{
			Key:        t.Key,
			Hosts:      t.Hosts,
			Attributes: t.Attributes,
		})
	}

	if root.CodeCache != nil {
		model.CodeCache.Enabled = root.CodeCache.Enabled
		model.CodeCache.Paths = append(model.CodeCache.Paths, root.CodeCache.Paths...)
	}
	return nil
}

// findConfigFiles returns path itself when it is an .hcl file, or every .hcl
// file under it when it is a directory.
func findConfigFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".hcl") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
