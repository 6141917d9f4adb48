package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	ErrEmptyPath     = errors.New("empty path")
	ErrPathTraversal = errors.New("path traversal detected")
	ErrAbsolutePath  = errors.New("absolute paths are not allowed")
	ErrReservedName  = errors.New("reserved filename not allowed")
	ErrHiddenName    = errors.New("filename cannot start with a dot or hyphen")
)

// maxNameBytes leaves room for a sniffed extension under the usual 255 byte
// filename limit.
const maxNameBytes = 200

// reservedNames are the Windows device names, matched without extension.
var reservedNames = func() map[string]bool {
	names := map[string]bool{"con": true, "prn": true, "aux": true, "nul": true}
	for i := 1; i <= 9; i++ {
		names[fmt.Sprintf("com%d", i)] = true
		names[fmt.Sprintf("lpt%d", i)] = true
	}
	return names
}()

func isReserved(base string) bool {
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	return reservedNames[stem]
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// ValidateSavePath accepts only relative paths that stay below the working
// directory and end in an ordinary file name. Downloaded outputs and
// comparison renders are written through it.
func ValidateSavePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}
	if filepath.IsAbs(path) || isSeparator(rune(path[0])) || filepath.VolumeName(path) != "" {
		return fmt.Errorf("%w: %s", ErrAbsolutePath, path)
	}
	for _, part := range strings.FieldsFunc(path, isSeparator) {
		if part == ".." {
			return fmt.Errorf("%w: %s", ErrPathTraversal, path)
		}
	}

	base := filepath.Base(filepath.Clean(path))
	if isReserved(base) {
		return fmt.Errorf("%w: %s", ErrReservedName, base)
	}
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "-") {
		return fmt.Errorf("%w: %s", ErrHiddenName, base)
	}
	return nil
}

// OutputPath joins a sanitised filename onto a relative output directory and
// validates the result.
func OutputPath(dir, name string) (string, error) {
	path := filepath.Join(dir, SanitizeFilename(name))
	if err := ValidateSavePath(path); err != nil {
		return "", err
	}
	return path, nil
}

// SanitizeFilename turns an arbitrary label (tool slug, prompt fragment,
// remote file name) into one safe path element.
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case isSeparator(r), r == ':':
			return '-'
		case strings.ContainsRune(`*?"<>|`, r), unicode.IsControl(r):
			return -1
		}
		return r
	}, name)

	cleaned = strings.TrimLeft(cleaned, ".-")
	cleaned = strings.TrimRight(cleaned, ". ")
	if len(cleaned) > maxNameBytes {
		cleaned = strings.ToValidUTF8(cleaned[:maxNameBytes], "")
	}

	if cleaned == "" {
		return "file"
	}
	if isReserved(cleaned) {
		cleaned += "_"
	}
	return cleaned
}
