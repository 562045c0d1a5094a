// Package sites holds what the quote site drivers share.
package sites

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/life-quote-scraper/internal/models"
)

// Navigator loads a URL into a page. *browser.Browser implements it.
type Navigator interface {
	Navigate(ctx context.Context, page playwright.Page, url string) error
}

// BirthYear derives the year of birth for age using January 1st as the
// birthday, so the site computes exactly age on any day of the year.
func BirthYear(now time.Time, age int) int {
	return now.Year() - age
}

// Profile is the personal part of a combination.
type Profile struct {
	Age       int
	BirthYear int
	Gender    string
	Nicotine  string
}

func ProfileOf(c models.Combination, now time.Time) (Profile, error) {
	age, err := c.Int(models.DimAge)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{
		Age:       age,
		BirthYear: BirthYear(now, age),
		Gender:    c.Value(models.DimGender),
		Nicotine:  c.Value(models.DimNicotine),
	}
	if p.Gender == "" || p.Nicotine == "" {
		return Profile{}, fmt.Errorf("combination %s has no gender or nicotine value", c)
	}
	return p, nil
}

// Touches reports whether any of names is among changed.
func Touches(changed []string, names ...string) bool {
	for _, c := range changed {
		for _, n := range names {
			if c == n {
				return true
			}
		}
	}
	return false
}

func Ints(values []int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}
