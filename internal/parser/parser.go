package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoResultsBanner means the site explicitly reported that it has no offers
// for the submitted profile.
var ErrNoResultsBanner = errors.New("site reported no results")

// PremiumParser extracts the premium strings shown on a rendered quote page.
// An empty slice with a nil error means no offers were listed.
type PremiumParser interface {
	ParsePremiums(html string) ([]string, error)
}

func newDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// visible reports whether neither s nor any ancestor is hidden with an
// inline display:none, which is how Alpine's x-show hides elements.
func visible(s *goquery.Selection) bool {
	for node := s; node.Length() > 0; node = node.Parent() {
		style, _ := node.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") {
			return false
		}
		if _, hidden := node.Attr("hidden"); hidden {
			return false
		}
	}
	return true
}

// ParseAmount converts a displayed premium such as "$1,014.32" or "£9.80"
// into a number.
func ParseAmount(premium string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.':
			return r
		default:
			return -1
		}
	}, premium)
	if cleaned == "" {
		return 0, fmt.Errorf("no amount in premium %q", premium)
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse premium %q: %w", premium, err)
	}
	return amount, nil
}
