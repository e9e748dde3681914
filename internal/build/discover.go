package build

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/roach88/lumen/internal/parser"
)

// Discover returns the source files below dir in lexical order. Hidden
// directories, node_modules and TypeScript declaration files are skipped.
func Discover(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if isDeclarationFile(name) {
			return nil
		}
		if _, ok := parser.ModeFromPath(name); ok {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isDeclarationFile(name string) bool {
	for _, ext := range []string{".d.ts", ".d.mts", ".d.cts"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
