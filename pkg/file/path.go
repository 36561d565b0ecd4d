package file

import (
	"path/filepath"
	"strings"
)

// Sibling returns a path next to path whose extension is replaced by
// suffix, e.g. Sibling("shots/cat.png", ".preview.jpg") is
// "shots/cat.preview.jpg". Dotfiles keep their full name as the stem.
func Sibling(path, suffix string) string {
	if path == "" {
		return path
	}
	if suffix != "" && !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return filepath.Join(dir, name+suffix)
}
