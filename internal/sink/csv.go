package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maltedev/life-quote-scraper/internal/models"
)

// Columns in file order. State is only written when a result carries it.
var (
	leadingColumns = []struct{ header, dim string }{
		{"Coverage Amount", models.DimCoverage},
		{"Term Length", models.DimTerm},
		{"Age", models.DimAge},
		{"Gender", models.DimGender},
		{"Is_Smoker", models.DimNicotine},
	}
	stateColumn   = "State"
	premiumColumn = "Premium"
)

// CSV writes one row per premium to a single file, replacing it atomically.
type CSV struct {
	path string
}

func NewCSV(dir, file string) *CSV {
	return &CSV{path: filepath.Join(dir, file)}
}

func (c *CSV) Path() string {
	return c.path
}

func (c *CSV) Write(ctx context.Context, results []models.QuoteResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeRows(csv.NewWriter(tmp), results); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", c.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", c.path, err)
	}
	return nil
}

func writeRows(w *csv.Writer, results []models.QuoteResult) error {
	withState := hasState(results)

	header := make([]string, 0, len(leadingColumns)+2)
	for _, col := range leadingColumns {
		header = append(header, col.header)
	}
	if withState {
		header = append(header, stateColumn)
	}
	if err := w.Write(append(header, premiumColumn)); err != nil {
		return err
	}

	for _, r := range results {
		row := make([]string, 0, len(header)+1)
		for _, col := range leadingColumns {
			row = append(row, r.Combination.Value(col.dim))
		}
		if withState {
			row = append(row, r.Combination.Value(models.DimState))
		}
		if err := w.Write(append(row, r.Premium)); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func hasState(results []models.QuoteResult) bool {
	for _, r := range results {
		if _, ok := r.Combination.Get(models.DimState); ok {
			return true
		}
	}
	return false
}
