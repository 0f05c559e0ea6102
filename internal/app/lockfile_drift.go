package app

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ben-ranford/noderesolve/internal/fsprobe"
)

const lockfileRemedy = "run your package manager install command so node_modules matches the manifest"

var lockfileNames = []string{"package-lock.json", "npm-shrinkwrap.json", "yarn.lock", "pnpm-lock.yaml", "bun.lockb", "bun.lock"}

type presentLockfile struct {
	name string
	info fs.FileInfo
}

// detectLockfileDrift reports when the root manifest and its lockfile
// disagree, since node_modules then may not hold what package.json names.
func detectLockfileDrift(root string) []string {
	manifestInfo, hasManifest := fsprobe.Stat(filepath.Join(root, "package.json"))
	if hasManifest && manifestInfo.IsDir() {
		hasManifest = false
	}
	lockfiles := findLockfiles(root)

	switch {
	case hasManifest && len(lockfiles) == 0:
		return []string{fmt.Sprintf("lockfile drift detected: package.json exists but no lockfile (%s) was found; %s", strings.Join(lockfileNames, ", "), lockfileRemedy)}
	case !hasManifest && len(lockfiles) > 0:
		return []string{fmt.Sprintf("lockfile drift detected: %s exists without package.json; remove the stale lockfile or restore the manifest", lockfiles[0].name)}
	case !hasManifest:
		return nil
	}

	newest := lockfiles[0]
	for _, lockfile := range lockfiles[1:] {
		if lockfile.info.ModTime().After(newest.info.ModTime()) {
			newest = lockfile
		}
	}
	if manifestInfo.ModTime().After(newest.info.ModTime()) {
		return []string{fmt.Sprintf("lockfile drift detected: package.json is newer than %s; %s", newest.name, lockfileRemedy)}
	}
	return nil
}

func findLockfiles(root string) []presentLockfile {
	lockfiles := make([]presentLockfile, 0, len(lockfileNames))
	for _, name := range lockfileNames {
		info, ok := fsprobe.Stat(filepath.Join(root, name))
		if !ok || info.IsDir() {
			continue
		}
		lockfiles = append(lockfiles, presentLockfile{name: name, info: info})
	}
	return lockfiles
}
