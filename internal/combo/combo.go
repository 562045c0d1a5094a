// Package combo generates the Cartesian product of input dimensions in a
// fixed nesting order: the first dimension varies slowest, the last fastest.
package combo

import (
	"errors"
	"fmt"
	"iter"

	"github.com/maltedev/life-quote-scraper/internal/models"
)

var ErrDuplicateDimension = errors.New("duplicate dimension")

// Validate rejects unnamed and repeated dimensions.
func Validate(dims []models.Dimension) error {
	seen := make(map[string]struct{}, len(dims))
	for _, d := range dims {
		if d.Name == "" {
			return fmt.Errorf("dimension name is required")
		}
		if _, ok := seen[d.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateDimension, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return nil
}

// Product lazily yields every combination of dims. The sequence is empty when
// dims is empty or any dimension has no values. It can be ranged over any
// number of times and always yields the same order.
func Product(dims []models.Dimension) iter.Seq[models.Combination] {
	frozen := make([]models.Dimension, len(dims))
	for i, d := range dims {
		frozen[i] = models.NewDimension(d.Name, d.Values...)
	}

	return func(yield func(models.Combination) bool) {
		if Count(frozen) == 0 {
			return
		}

		idx := make([]int, len(frozen))
		fields := make([]models.Field, len(frozen))
		for {
			for i, d := range frozen {
				fields[i] = models.Field{Name: d.Name, Value: d.Values[idx[i]]}
			}
			if !yield(models.NewCombination(fields...)) {
				return
			}

			// odometer: bump the innermost dimension and carry outwards
			pos := len(frozen) - 1
			for pos >= 0 {
				idx[pos]++
				if idx[pos] < len(frozen[pos].Values) {
					break
				}
				idx[pos] = 0
				pos--
			}
			if pos < 0 {
				return
			}
		}
	}
}

// Count returns the number of combinations Product yields.
func Count(dims []models.Dimension) int {
	if len(dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range dims {
		n *= len(d.Values)
	}
	return n
}

// Pin turns a combination back into single-value dimensions, so Product
// regenerates exactly that combination.
func Pin(c models.Combination) []models.Dimension {
	fields := c.Fields()
	dims := make([]models.Dimension, len(fields))
	for i, f := range fields {
		dims[i] = models.NewDimension(f.Name, f.Value)
	}
	return dims
}

// Prefix pins the fields of c ahead of dims. Sites that resume a session per
// risk profile use it to grid the remaining dimensions under that profile.
func Prefix(c models.Combination, dims []models.Dimension) []models.Dimension {
	return append(Pin(c), dims...)
}

func Collect(seq iter.Seq[models.Combination]) []models.Combination {
	var out []models.Combination
	for c := range seq {
		out = append(out, c)
	}
	return out
}
