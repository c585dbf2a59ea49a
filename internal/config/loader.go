package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
)

// Source locates the YAML node a setting was read from.
type Source struct {
	Kind   SourceKind
	File   string
	Line   int
	Column int
}

func (s Source) String() string {
	if s.Kind != SourceFile {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // dotted key -> file that set it last
	Files   []string          // every file read, includes before their includer
}

// SourceOf reports where the setting at path came from.
func (r *LoadResult) SourceOf(path string) Source {
	if src, ok := r.Sources[path]; ok {
		return src
	}
	return Source{Kind: SourceDefault}
}

func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "xwbridge", "config.yaml"), nil
}

// Load reads the configuration from the standard location.
func Load() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	res, err := LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadFromPath reads path and its includes. A missing file yields the
// defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	l := &loader{
		visited: map[string]bool{},
		sources: map[string]Source{},
	}
	var missing *missingFileError
	if err := l.load(path, nil); err != nil && !errors.As(err, &missing) {
		return nil, err
	}

	cfg := DefaultConfig()
	l.raw.apply(cfg)
	if err := cfg.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			if src, ok := l.sources[verr.Path]; ok {
				verr.Source = src
			}
		}
		return nil, err
	}
	return &LoadResult{Config: cfg, Sources: l.sources, Files: l.files}, nil
}

// missingFileError marks the top-level file being absent.
type missingFileError struct{ err error }

func (e *missingFileError) Error() string { return e.err.Error() }
func (e *missingFileError) Unwrap() error { return e.err }

// loader merges a file tree in include order. Every file is read once;
// later files override earlier ones key by key.
type loader struct {
	visited map[string]bool
	raw     RawConfig
	sources map[string]Source
	files   []string
}

// load merges the includes of path, then path itself. chain holds the
// files currently being loaded.
func (l *loader) load(path string, chain []string) error {
	file, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	if real, err := filepath.EvalSymlinks(file); err == nil {
		file = real
	}
	if slices.Contains(chain, file) {
		return fmt.Errorf("include cycle detected: %s -> %s", strings.Join(chain, " -> "), file)
	}
	if l.visited[file] {
		return nil
	}
	l.visited[file] = true

	data, err := os.ReadFile(file)
	if err != nil {
		if chain == nil && errors.Is(err, fs.ErrNotExist) {
			return &missingFileError{err: err}
		}
		return fmt.Errorf("%s: failed to read: %w", file, err)
	}
	root, raw, err := parseFile(data)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	chain = append(chain, file)
	for _, inc := range includeNodes(root) {
		paths, err := includedFiles(file, inc.Value)
		if err != nil {
			return fmt.Errorf("%s:%d:%d: include %q: %w", file, inc.Line, inc.Column, inc.Value, err)
		}
		for _, p := range paths {
			if err := l.load(p, chain); err != nil {
				return err
			}
		}
	}

	l.raw = l.raw.merge(raw)
	recordSources(root, file, "", l.sources)
	l.files = append(l.files, file)
	return nil
}

// parseFile returns the top-level mapping of data along with its strict
// decoding. Empty documents decode to nothing.
func parseFile(data []byte) (*yaml.Node, RawConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, RawConfig{}, fmt.Errorf("failed to parse yaml: %w", err)
	}
	var raw RawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, RawConfig{}, err
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	return root, raw, nil
}

// includeNodes returns the scalar entries of the top-level include key,
// which may be a single path or a list of them.
func includeNodes(root *yaml.Node) []*yaml.Node {
	if root == nil || root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "include" {
			continue
		}
		val := root.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			return []*yaml.Node{val}
		case yaml.SequenceNode:
			var out []*yaml.Node
			for _, item := range val.Content {
				if item.Kind == yaml.ScalarNode {
					out = append(out, item)
				}
			}
			return out
		}
	}
	return nil
}

// includedFiles resolves include against the directory of from. A
// directory expands to its .yaml and .yml files in name order.
func includedFiles(from, include string) ([]string, error) {
	if include == "" {
		return nil, fmt.Errorf("path is empty")
	}
	if include == "~" || strings.HasPrefix(include, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		include = filepath.Join(home, strings.TrimPrefix(include, "~"))
	}
	if !filepath.IsAbs(include) {
		include = filepath.Join(filepath.Dir(from), include)
	}

	info, err := os.Stat(include)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{include}, nil
	}
	entries, err := os.ReadDir(include)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, ent := range entries {
		switch strings.ToLower(filepath.Ext(ent.Name())) {
		case ".yaml", ".yml":
			if !ent.IsDir() {
				files = append(files, filepath.Join(include, ent.Name()))
			}
		}
	}
	return files, nil
}

// recordSources stores the position of every key under node, replacing
// whatever an earlier file set.
func recordSources(node *yaml.Node, file, prefix string, out map[string]Source) {
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}
		val := node.Content[i+1]
		out[key] = Source{Kind: SourceFile, File: file, Line: val.Line, Column: val.Column}
		recordSources(val, file, key, out)
	}
}
