package depcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"

	"github.com/ben-ranford/noderesolve/internal/fsprobe"
	"github.com/ben-ranford/noderesolve/internal/resolver"
)

const (
	metadataFile = "_metadata.json"
	hashLength   = 8
)

// lockfiles are hashed in this order when the cache metadata carries no
// browser hash of its own.
var lockfiles = []string{"package-lock.json", "npm-shrinkwrap.json", "yarn.lock", "pnpm-lock.yaml", "bun.lockb", "bun.lock"}

var jsLikeExtensions = map[string]bool{
	".js":  true,
	".mjs": true,
	".cjs": true,
	".jsx": true,
	".ts":  true,
	".mts": true,
	".cts": true,
	".tsx": true,
}

type Metadata struct {
	Hash        string                  `json:"hash,omitempty"`
	BrowserHash string                  `json:"browserHash,omitempty"`
	Optimized   map[string]OptimizedDep `json:"optimized,omitempty"`
}

type OptimizedDep struct {
	Src          string `json:"src,omitempty"`
	File         string `json:"file"`
	NeedsInterop bool   `json:"needsInterop,omitempty"`
}

// Cache answers bare imports from a directory of pre-bundled dependencies
// and versions node_modules results with the cache's browser hash.
type Cache struct {
	dir         string
	hash        string
	browserHash string
	optimized   map[string]OptimizedDep
	log         logr.Logger
}

var (
	_ resolver.PrePackageResolver  = (*Cache)(nil)
	_ resolver.PostPackageResolver = (*Cache)(nil)
)

// Load reads dir/_metadata.json. A missing metadata file yields an empty
// cache whose browser hash is derived from the lockfiles under root.
func Load(dir, root string, log logr.Logger) (*Cache, error) {
	cache := &Cache{dir: dir, optimized: map[string]OptimizedDep{}, log: log}

	var metadata Metadata
	if data, ok := fsprobe.ReadFile(filepath.Join(dir, metadataFile)); ok {
		if err := json.Unmarshal(data, &metadata); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Join(dir, metadataFile), err)
		}
	}
	for id, dep := range metadata.Optimized {
		if dep.File == "" {
			continue
		}
		if !filepath.IsAbs(dep.File) {
			dep.File = filepath.Join(dir, filepath.FromSlash(dep.File))
		}
		cache.optimized[id] = dep
	}

	cache.hash = metadata.Hash
	cache.browserHash = metadata.BrowserHash
	if cache.browserHash == "" {
		cache.browserHash = LockfileHash(root)
	}
	log.V(1).Info("loaded dependency cache", "dir", dir, "optimized", len(cache.optimized), "browserHash", cache.browserHash)
	return cache, nil
}

// LockfileHash hashes the package manager lockfiles present in root.
func LockfileHash(root string) string {
	digest := sha256.New()
	for _, name := range lockfiles {
		data, ok := fsprobe.ReadFile(filepath.Join(root, name))
		if !ok {
			continue
		}
		digest.Write([]byte(name))
		digest.Write([]byte{0})
		digest.Write(data)
	}
	return hex.EncodeToString(digest.Sum(nil))[:hashLength]
}

// Stale reports whether the cache was built against lockfiles that differ
// from the ones now in root. A cache without a recorded hash is never stale.
func (c *Cache) Stale(root string) bool {
	return c.hash != "" && c.hash != LockfileHash(root)
}

func (c *Cache) BrowserHash() string {
	return c.browserHash
}

func (c *Cache) Optimized(id string) (OptimizedDep, bool) {
	dep, ok := c.optimized[id]
	return dep, ok
}

// PrePackageResolve serves an optimized dependency from the cache. External
// imports and entries whose bundle is missing on disk fall through.
func (c *Cache) PrePackageResolve(_ context.Context, id, _ string, external bool) (*resolver.Result, error) {
	if external {
		return nil, nil
	}
	dep, ok := c.optimized[id]
	if !ok {
		return nil, nil
	}
	if !fsprobe.IsFile(dep.File) {
		c.log.Info("optimized dependency missing from cache", "id", id, "file", dep.File)
		return nil, nil
	}
	return &resolver.Result{ID: c.versioned(dep.File)}, nil
}

// PostPackageResolve versions script files resolved from node_modules so
// browsers refetch them when dependencies change.
func (c *Cache) PostPackageResolve(_ context.Context, id string, resolved resolver.Result, isCJS bool) (string, error) {
	file, _, _ := strings.Cut(resolved.ID, "?")
	if !inNodeModules(file) || !jsLikeExtensions[strings.ToLower(filepath.Ext(file))] {
		return resolved.ID, nil
	}
	if isCJS {
		c.log.V(1).Info("commonjs dependency is not pre-bundled", "id", id, "file", file)
	}
	return c.versioned(resolved.ID), nil
}

func (c *Cache) versioned(id string) string {
	if strings.Contains(id, "?") {
		if strings.Contains(id, "?v=") || strings.Contains(id, "&v=") {
			return id
		}
		return id + "&v=" + c.browserHash
	}
	return id + "?v=" + c.browserHash
}

func inNodeModules(p string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(p), "/") {
		if segment == "node_modules" {
			return true
		}
	}
	return false
}
