package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Grid is the static set of risk factors a run iterates. Sites turn it into
// dimensions with their own value labels.
type Grid struct {
	// Ages takes precedence over the AgeMin..AgeMax range when set.
	Ages            []int    `json:"ages"`
	AgeMin          int      `json:"age_min"`
	AgeMax          int      `json:"age_max"`
	AgeStep         int      `json:"age_step"`
	Genders         []string `json:"genders"`
	Nicotine        []bool   `json:"nicotine"`
	CoverageAmounts []string `json:"coverage_amounts"`
	TermLengths     []int    `json:"term_lengths"`
	States          []string `json:"states"`
}

func DefaultGrid() Grid {
	return Grid{
		AgeMin:          25,
		AgeMax:          65,
		AgeStep:         5,
		Genders:         []string{"Male", "Female"},
		Nicotine:        []bool{true, false},
		CoverageAmounts: []string{"100000", "250000", "500000", "1000000"},
		TermLengths:     []int{10, 15, 20, 25, 30},
	}
}

// AgeValues expands the age configuration into an ordered list.
func (g Grid) AgeValues() []int {
	if len(g.Ages) > 0 {
		return append([]int(nil), g.Ages...)
	}
	step := g.AgeStep
	if step <= 0 {
		step = 1
	}
	var ages []int
	for age := g.AgeMin; age <= g.AgeMax; age += step {
		ages = append(ages, age)
	}
	return ages
}

func (g Grid) Validate() error {
	if len(g.AgeValues()) == 0 {
		return fmt.Errorf("grid has no ages")
	}
	for _, age := range g.AgeValues() {
		if age < 18 || age > 90 {
			return fmt.Errorf("grid age %d is out of range 18-90", age)
		}
	}
	if len(g.Genders) == 0 {
		return fmt.Errorf("grid has no genders")
	}
	if len(g.Nicotine) == 0 {
		return fmt.Errorf("grid has no nicotine values")
	}
	if len(g.CoverageAmounts) == 0 {
		return fmt.Errorf("grid has no coverage amounts")
	}
	if len(g.TermLengths) == 0 {
		return fmt.Errorf("grid has no term lengths")
	}
	return nil
}

// LoadGrid reads a JSON5 grid file and its "<name>.local.<ext>" override on
// top of DefaultGrid. Missing files leave the defaults in place. The merged
// grid is validated before it is returned.
func LoadGrid(path string) (Grid, error) {
	grid := DefaultGrid()
	if path == "" {
		return grid, nil
	}

	for _, name := range []string{path, localPath(path)} {
		var override Grid
		found, err := readJSON5(name, &override)
		if err != nil {
			return grid, fmt.Errorf("failed to read grid %s: %w", name, err)
		}
		if !found {
			continue
		}
		// a range in a later file replaces an earlier explicit age list
		if len(override.Ages) == 0 && override.AgeMax > 0 {
			grid.Ages = nil
		}
		if err := mergo.Merge(&grid, override, mergo.WithOverride); err != nil {
			return grid, fmt.Errorf("failed to merge grid %s: %w", name, err)
		}
		slog.Debug("loaded grid config", "file", name)
	}

	if err := grid.Validate(); err != nil {
		return grid, fmt.Errorf("invalid grid %s: %w", path, err)
	}
	return grid, nil
}

func localPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, prefix+".local"+ext)
}

func readJSON5(name string, out any) (bool, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	return true, json5.Unmarshal(data, out)
}
