// Package filter provides extension type groups and glob matching for
// ferry operations. Type groups drive organize's classification; glob
// matching serves trash listing and sync exclude rules.
package filter

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern indicates a glob pattern that could not be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// TypeGroups maps file type group names to their associated file extensions.
// Each group contains common extensions for that category.
var TypeGroups = map[string][]string{
	"video": {
		".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".mpeg", ".mpg",
	},
	"audio": {
		".mp3", ".flac", ".wav", ".aac", ".ogg", ".wma", ".m4a", ".opus", ".aiff", ".alac",
	},
	"image": {
		".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif", ".webp", ".svg", ".ico", ".heic", ".heif", ".raw",
	},
	"archive": {
		".zip", ".tar", ".gz", ".bz2", ".xz", ".7z", ".rar", ".tgz", ".tbz2",
	},
	"document": {
		".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt", ".ods", ".odp", ".rtf", ".txt", ".md", ".epub",
	},
	"code": {
		".go", ".py", ".js", ".ts", ".java", ".c", ".cpp", ".h", ".hpp", ".rs", ".rb", ".php", ".swift", ".kt", ".scala", ".cs", ".sh", ".bash", ".zsh", ".fish",
	},
	"log": {
		".log", ".logs",
	},
}

// groupIndex is the reverse lookup built once from TypeGroups.
var groupIndex = func() map[string]string {
	idx := make(map[string]string)
	for group, exts := range TypeGroups {
		for _, ext := range exts {
			idx[ext] = group
		}
	}
	return idx
}()

// GroupFor returns the type group for a file extension. The extension is
// normalized: lowercased and prefixed with "." if missing. The second
// return is false when no group claims the extension.
func GroupFor(ext string) (string, bool) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	group, ok := groupIndex[ext]
	return group, ok
}

// GroupForPath returns the type group for a path based on its extension.
func GroupForPath(path string) (string, bool) {
	return GroupFor(filepath.Ext(path))
}

// Groups returns the known group names in sorted order.
func Groups() []string {
	names := make([]string, 0, len(TypeGroups))
	for name := range TypeGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MatchBase reports whether the base name matches the glob pattern.
// Patterns follow doublestar syntax. An empty pattern matches everything.
func MatchBase(pattern, name string) (bool, error) {
	if pattern == "" {
		return true, nil
	}
	ok, err := doublestar.Match(pattern, filepath.Base(name))
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	return ok, nil
}

// MatchAny reports whether the slash-separated relative path matches any of
// the patterns. A pattern with no separator is also tried against the base
// name, so "*.tmp" excludes temp files at any depth. Invalid patterns are
// skipped.
func MatchAny(relPath string, patterns []string) bool {
	relPath = filepath.ToSlash(relPath)
	base := filepath.Base(relPath)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, err := doublestar.Match(pattern, base); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// ValidatePatterns checks every pattern and returns an error naming the
// first invalid one. Callers validate user-supplied excludes up front
// rather than silently skipping them mid-walk.
func ValidatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		}
	}
	return nil
}
