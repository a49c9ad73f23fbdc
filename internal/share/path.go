// Package share implements the share registry, the path-to-share resolver,
// the authorization decision function and the invite engine.
package share

import (
	"errors"
	"fmt"
	"strings"

	"github.com/relayonprem/control-plane/internal/store"
)

const maxPathLength = 512

// docExtensions are the file suffixes a doc share may point at.
var docExtensions = []string{".md", ".canvas"}

var (
	ErrEmptyPath       = errors.New("path must not be empty")
	ErrPathTraversal   = errors.New("path must not contain '..' components")
	ErrPathNullByte    = errors.New("path must not contain null bytes")
	ErrAbsolutePath    = errors.New("path must be relative")
	ErrPathTooLong     = fmt.Errorf("path must be at most %d characters", maxPathLength)
	ErrBadDocExtension = errors.New("document path must end in a supported extension")
)

// ValidatePath rejects paths that could escape the owner's document space.
// Paths are stored as given; trailing slashes are only normalized during
// folder-prefix matching.
func ValidatePath(kind store.ShareKind, path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > maxPathLength {
		return ErrPathTooLong
	}
	if strings.ContainsRune(path, 0) {
		return ErrPathNullByte
	}
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "\\") {
		return ErrAbsolutePath
	}
	if len(path) >= 2 && path[1] == ':' && isASCIILetter(path[0]) {
		return ErrAbsolutePath
	}
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return ErrPathTraversal
		}
	}
	if kind == store.ShareKindDoc && !hasDocExtension(path) {
		return ErrBadDocExtension
	}
	return nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func hasDocExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range docExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// folderPrefix normalizes a folder share path for prefix matching.
func folderPrefix(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

// WithinFolder reports whether filePath sits strictly under folderPath.
func WithinFolder(folderPath, filePath string) bool {
	prefix := folderPrefix(folderPath)
	return strings.HasPrefix(filePath, prefix) && filePath != prefix
}
