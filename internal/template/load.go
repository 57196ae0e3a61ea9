package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/podium/internal/model"
)

// LoadFile parses a single TOML template definition and validates it.
// Version defaults to 1.
func LoadFile(path string) (*model.ContractTemplate, error) {
	var t model.ContractTemplate
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	if t.Version == 0 {
		t.Version = 1
	}
	if err := Validate(&t); err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return &t, nil
}

// LoadDir loads every *.toml file in dir, in file name order.
func LoadDir(dir string) ([]*model.ContractTemplate, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, fmt.Errorf("list templates in %s: %w", dir, err)
	}
	if len(paths) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("templates dir: %w", err)
		}
	}
	sort.Strings(paths)
	out := make([]*model.ContractTemplate, 0, len(paths))
	for _, p := range paths {
		t, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
