// Package sandbox resolves client-supplied LOAD/SAVE filenames to absolute
// paths confined to the server's data directory.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDataSubdir is the subdirectory LOAD/SAVE filenames resolve into
// when no subdirectory is explicitly configured.
const DefaultDataSubdir = "server_databases"

const maxFilenameLen = 250

const forbiddenChars = `/\:*?"<>|`

// Resolver confines filenames to <root>/<subdir>/.
type Resolver struct {
	root   string // absolute canonicalized data root
	subdir string
}

// New resolves dataRoot to an absolute path (the process working directory
// if dataRoot is empty) and ensures <dataRoot>/<subdir> exists.
func New(dataRoot, subdir string) (*Resolver, error) {
	if subdir == "" {
		subdir = DefaultDataSubdir
	}
	if dataRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		dataRoot = wd
	}
	absRoot, err := filepath.Abs(dataRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve data root %q: %w", dataRoot, err)
	}
	sandboxDir := filepath.Join(absRoot, subdir)
	if info, err := os.Stat(sandboxDir); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(sandboxDir, 0o755); err != nil {
				return nil, fmt.Errorf("create sandbox directory %q: %w", sandboxDir, err)
			}
		} else {
			return nil, fmt.Errorf("stat sandbox directory %q: %w", sandboxDir, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("sandbox path %q exists and is not a directory", sandboxDir)
	}
	return &Resolver{root: absRoot, subdir: subdir}, nil
}

// Resolve cleans a client-supplied filename and confines it under the
// sandbox directory, returning the resulting absolute path. Any attempt to
// escape the sandbox, or a filename that reduces to empty/"."/".." or
// contains a forbidden character, is rejected.
func (r *Resolver) Resolve(clientFilename string) (string, error) {
	base := filepath.Base(clientFilename)
	cleaned := stripControlAndLeadingDots(base)

	if cleaned == "" {
		return "", fmt.Errorf("filename %q reduces to an invalid name", clientFilename)
	}
	if strings.ContainsAny(clientFilename, forbiddenChars) {
		return "", fmt.Errorf("filename %q contains a forbidden character", clientFilename)
	}
	if len(cleaned) > maxFilenameLen {
		return "", fmt.Errorf("filename %q exceeds %d characters", clientFilename, maxFilenameLen)
	}

	sandboxDir := filepath.Join(r.root, r.subdir)
	candidate := filepath.Join(sandboxDir, cleaned)

	prefix := sandboxDir + string(filepath.Separator)
	if !strings.HasPrefix(candidate+string(filepath.Separator), prefix) {
		return "", fmt.Errorf("filename %q escapes the sandbox directory", clientFilename)
	}
	return candidate, nil
}

func stripControlAndLeadingDots(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	return strings.TrimLeft(cleaned, ".")
}
