package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ben-ranford/noderesolve/internal/fsprobe"
	"github.com/ben-ranford/noderesolve/internal/resolver"
)

const (
	readConfigFileErrFmt = "read config file %s: %w"
	parseConfigErrFmt    = "parse config file %s: %w"
)

var configFileNames = []string{".noderesolve.yml", ".noderesolve.yaml", "noderesolve.toml", "noderesolve.json"}

//go:embed schema.json
var schemaJSON string

var schema = mustCompileSchema()

func mustCompileSchema() *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("compile config schema: %v", err))
	}
	return compiled
}

// File is a decoded configuration document. Nil fields were not set.
type File struct {
	Root                   *string  `yaml:"root" json:"root" toml:"root"`
	MainFields             []string `yaml:"main_fields" json:"main_fields" toml:"main_fields"`
	Extensions             []string `yaml:"extensions" json:"extensions" toml:"extensions"`
	Conditions             []string `yaml:"conditions" json:"conditions" toml:"conditions"`
	PreserveSymlinks       *bool    `yaml:"preserve_symlinks" json:"preserve_symlinks" toml:"preserve_symlinks"`
	PreferRelative         *bool    `yaml:"prefer_relative" json:"prefer_relative" toml:"prefer_relative"`
	NestedSelectedPackages *bool    `yaml:"nested_selected_packages" json:"nested_selected_packages" toml:"nested_selected_packages"`
	NodeBuiltin            *string  `yaml:"node_builtin" json:"node_builtin" toml:"node_builtin"`
	Production             *bool    `yaml:"production" json:"production" toml:"production"`
	Require                *bool    `yaml:"require" json:"require" toml:"require"`
	External               []string `yaml:"external" json:"external" toml:"external"`
	DepsCache              *string  `yaml:"deps_cache" json:"deps_cache" toml:"deps_cache"`
}

type LoadResult struct {
	File       File
	ConfigPath string
}

// Load finds and decodes the configuration for rootDir. Without an explicit
// path the well-known names are tried in order; finding none is not an error.
func Load(rootDir, explicitPath string) (LoadResult, error) {
	rootAbs, err := filepath.Abs(rootDir)
	if err != nil {
		return LoadResult{}, fmt.Errorf("resolve root path: %w", err)
	}
	explicitPath = strings.TrimSpace(explicitPath)

	configPath, found, err := resolveConfigPath(rootAbs, explicitPath)
	if err != nil || !found {
		return LoadResult{}, err
	}

	readRoot := rootAbs
	if explicitPath != "" {
		readRoot = filepath.Dir(configPath)
	}
	data, err := fsprobe.ReadFileUnder(readRoot, configPath)
	if err != nil {
		return LoadResult{}, fmt.Errorf(readConfigFileErrFmt, configPath, err)
	}

	file, err := parseConfig(configPath, data)
	if err != nil {
		return LoadResult{}, fmt.Errorf(parseConfigErrFmt, configPath, err)
	}
	return LoadResult{File: file, ConfigPath: configPath}, nil
}

func resolveConfigPath(rootDir, explicitPath string) (string, bool, error) {
	if explicitPath != "" {
		candidate := explicitPath
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(rootDir, candidate)
		}
		candidate = filepath.Clean(candidate)
		if _, err := os.Stat(candidate); err != nil {
			if os.IsNotExist(err) {
				return "", false, fmt.Errorf("config file not found: %s", candidate)
			}
			return "", false, fmt.Errorf(readConfigFileErrFmt, candidate, err)
		}
		return candidate, true, nil
	}

	for _, name := range configFileNames {
		candidate := filepath.Join(rootDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !os.IsNotExist(err) {
			return "", false, fmt.Errorf(readConfigFileErrFmt, candidate, err)
		}
	}
	return "", false, nil
}

// parseConfig validates the document against the schema, then decodes it
// strictly into File.
func parseConfig(path string, data []byte) (File, error) {
	var (
		document any
		cfg      File
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &document); err != nil {
			return File{}, fmt.Errorf("invalid JSON config: %w", err)
		}
		if err := validate(document); err != nil {
			return File{}, err
		}
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return File{}, fmt.Errorf("invalid JSON config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &document); err != nil {
			return File{}, fmt.Errorf("invalid TOML config: %w", err)
		}
		if err := validate(document); err != nil {
			return File{}, err
		}
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return File{}, fmt.Errorf("invalid TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &document); err != nil {
			return File{}, fmt.Errorf("invalid YAML config: %w", err)
		}
		if document == nil {
			return File{}, nil
		}
		if err := validate(document); err != nil {
			return File{}, err
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return File{}, fmt.Errorf("invalid YAML config: %w", err)
		}
	}
	return cfg, nil
}

func validate(document any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if result.Valid() {
		return nil
	}
	messages := make([]string, 0, len(result.Errors()))
	for _, item := range result.Errors() {
		messages = append(messages, item.String())
	}
	return errors.New("config does not match schema: " + strings.Join(messages, "; "))
}

// Overrides converts the file into resolver overrides. A relative root is
// taken relative to baseDir.
func (f File) Overrides(baseDir string) (resolver.Overrides, error) {
	overrides := resolver.Overrides{
		MainFields:                    f.MainFields,
		Extensions:                    f.Extensions,
		Conditions:                    f.Conditions,
		PreserveSymlinks:              f.PreserveSymlinks,
		PreferRelative:                f.PreferRelative,
		SupportNestedSelectedPackages: f.NestedSelectedPackages,
		IsRequire:                     f.Require,
		IsProduction:                  f.Production,
	}
	if f.Root != nil {
		root := *f.Root
		if !filepath.IsAbs(root) {
			root = filepath.Join(baseDir, root)
		}
		overrides.Root = &root
	}
	if f.NodeBuiltin != nil {
		policy, err := resolver.ParseBuiltinPolicy(*f.NodeBuiltin, f.Production != nil && *f.Production)
		if err != nil {
			return resolver.Overrides{}, err
		}
		overrides.NodeBuiltin = policy
	}
	if len(f.External) > 0 {
		overrides.Externalizer = ExternalPackages(f.External)
	}
	return overrides, nil
}

// ExternalPackages externalizes imports of the named packages and their
// subpaths.
func ExternalPackages(names []string) resolver.Externalizer {
	packages := make(map[string]bool, len(names))
	for _, name := range names {
		packages[strings.TrimSpace(name)] = true
	}
	return resolver.ExternalizeFunc(func(id string) bool {
		if packages[id] {
			return true
		}
		for name := range packages {
			if strings.HasPrefix(id, name+"/") {
				return true
			}
		}
		return false
	})
}
