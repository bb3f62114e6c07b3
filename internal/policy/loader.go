package policy

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LoadRegoFiles reads every .rego module under a policy bundle directory,
// keyed by path relative to dir. Rego test files are skipped so a bundle can
// ship its own policy tests.
func LoadRegoFiles(dir string) (map[string]string, error) {
	modules := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if filepath.Ext(name) != ".rego" || strings.HasSuffix(name, "_test.rego") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		modules[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return modules, nil
}
