package sandbox

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/justapithecus/governor/types"
)

type fileEntry struct {
	RelativePath string `json:"relative_path"`
	SHA256       string `json:"sha256"`
}

// ComputeStateHash walks root in deterministic order and returns the
// canonical SHA-256 of its {relative_path, sha256} snapshot. A root that
// does not exist hashes as the empty-list snapshot, matching the Python
// harness's fallback so a freshly-initialized sandbox and a never-created
// one hash identically.
func ComputeStateHash(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return types.CanonicalSHA256([]fileEntry{}), nil
	}

	var entries []fileEntry
	err = filepath.Walk(abs, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		content, readErr := os.ReadFile(path)
		hash := ""
		if readErr == nil {
			hash = sha256Hex(content)
		}
		rel, relErr := filepath.Rel(abs, path)
		if relErr != nil {
			return relErr
		}
		entries = append(entries, fileEntry{RelativePath: filepath.ToSlash(rel), SHA256: hash})
		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelativePath < entries[j].RelativePath })
	if entries == nil {
		entries = []fileEntry{}
	}
	return types.CanonicalSHA256(entries), nil
}
