// Package sandbox implements the sandboxed execution adapter: the only
// component permitted to touch the filesystem on behalf of a plan. Every
// path argument is resolved relative to a sandbox root and rejected if it
// would escape that root; no action ever reaches outside it.
package sandbox

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/justapithecus/governor/types"
)

// Error strings returned in Result.Error, matching the fixed vocabulary the
// Verifier and report generator key off of.
const (
	ErrPathTraversalOrInvalid = "path_traversal_or_invalid"
	ErrFileNotFound           = "file_not_found"
	ErrPathNotFound           = "path_not_found"
	ErrNotADirectory          = "not_a_directory"
)

// unknownToolError formats the unknown-tool error for a given tool name.
func unknownToolError(tool string) string {
	return "unknown_tool:" + tool
}

// AdapterStatus values for Result.Status.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome of executing one action against the sandbox.
type Result struct {
	ActionID      string
	AdapterStatus string
	OutputHash    string
	Error         string
}

// Adapter executes governed actions against a confined directory tree. A
// zero Adapter is not usable; construct with New.
type Adapter struct {
	root string
}

// New creates the sandbox root directory (and any parents) if it does not
// already exist, and returns an Adapter confined to it.
func New(root string) (*Adapter, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	return &Adapter{root: resolved}, nil
}

// Root returns the sandbox's confined absolute root directory.
func (a *Adapter) Root() string {
	return a.root
}

// resolve maps path onto a location inside the sandbox root, rejecting any
// ".." segment and any result that would resolve outside the root. An
// empty path or "/" resolves to the root itself.
func (a *Adapter) resolve(path string) (string, bool) {
	if path == "" || path == "/" {
		return a.root, true
	}
	clean := strings.ReplaceAll(strings.TrimLeft(path, "/"), "\\", "/")
	resolved := a.root
	for _, part := range strings.Split(clean, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", false
		default:
			resolved = filepath.Join(resolved, part)
		}
	}
	rel, err := filepath.Rel(a.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return resolved, true
}

// resolveFile resolves path for a file operation; unlike resolve, the
// sandbox root itself is not a valid result since a file path is required.
func (a *Adapter) resolveFile(path string) (string, bool) {
	r, ok := a.resolve(path)
	if !ok || r == a.root {
		return "", false
	}
	return r, true
}

// Execute runs one action against the sandbox and returns its outcome.
// Unrecognized tools, path traversal attempts, and missing files all
// surface as adapter_status "error" with a descriptive Error string —
// Execute never panics and never returns a Go error, since every failure
// mode here is a normal, expected outcome the caller logs and continues.
func (a *Adapter) Execute(action types.Action) Result {
	switch types.ToolName(action.ToolName) {
	case types.ToolWriteFile:
		return a.writeFile(action)
	case types.ToolReadFile:
		return a.readFile(action)
	case types.ToolListDir:
		return a.listDir(action)
	case types.ToolDeleteFile:
		return a.deleteFile(action)
	default:
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: unknownToolError(action.ToolName)}
	}
}

func (a *Adapter) writeFile(action types.Action) Result {
	path, _ := action.Path()
	content, _ := action.Content()
	fp, ok := a.resolveFile(path)
	if !ok {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: ErrPathTraversalOrInvalid}
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: err.Error()}
	}
	if err := os.WriteFile(fp, []byte(content), 0o644); err != nil {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: err.Error()}
	}
	return Result{ActionID: action.ActionID, AdapterStatus: StatusSuccess, OutputHash: sha256Hex([]byte(content))}
}

func (a *Adapter) readFile(action types.Action) Result {
	path, _ := action.Path()
	fp, ok := a.resolveFile(path)
	if !ok {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: ErrPathTraversalOrInvalid}
	}
	content, err := os.ReadFile(fp)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: ErrFileNotFound}
	}
	if err != nil {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: err.Error()}
	}
	return Result{ActionID: action.ActionID, AdapterStatus: StatusSuccess, OutputHash: sha256Hex(content)}
}

func (a *Adapter) listDir(action types.Action) Result {
	path, ok := action.Path()
	if !ok || path == "" {
		path = "."
	}
	rp, ok := a.resolve(path)
	if !ok {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: ErrPathTraversalOrInvalid}
	}
	info, err := os.Stat(rp)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: ErrPathNotFound}
	}
	if err != nil {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: err.Error()}
	}
	if !info.IsDir() {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: ErrNotADirectory}
	}
	entries, err := os.ReadDir(rp)
	if err != nil {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: err.Error()}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	canonical, err := types.CanonicalJSON(names)
	if err != nil {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: err.Error()}
	}
	return Result{ActionID: action.ActionID, AdapterStatus: StatusSuccess, OutputHash: sha256Hex(canonical)}
}

func (a *Adapter) deleteFile(action types.Action) Result {
	path, _ := action.Path()
	fp, ok := a.resolveFile(path)
	if !ok {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: ErrPathTraversalOrInvalid}
	}
	if err := os.Remove(fp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Result{ActionID: action.ActionID, AdapterStatus: StatusError, Error: err.Error()}
	}
	return Result{ActionID: action.ActionID, AdapterStatus: StatusSuccess}
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
