package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	lifeInsureNoResults = "Your original search had no results"
	lifeInsureSection   = "No Medical Exam Policies"
	lifeInsureDollars   = `span[x-text="getModalPrice(row, paymentMode).split('.')[0]"]`
	lifeInsureCents     = `span[x-text="getModalPrice(row, paymentMode).split('.')[1]"]`
)

// LifeInsureParser reads the no-medical-exam quotes of the US quoter.
type LifeInsureParser struct{}

func NewLifeInsureParser() *LifeInsureParser {
	return &LifeInsureParser{}
}

// ParsePremiums returns "$d.c" strings from the no-medical-exam section. A
// visible no-results banner yields ErrNoResultsBanner; a missing section
// yields no premiums.
func (p *LifeInsureParser) ParsePremiums(html string) ([]string, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	banner := doc.Find("h2").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), lifeInsureNoResults)
	})
	if banner.Length() > 0 && visible(banner.First()) {
		return nil, ErrNoResultsBanner
	}

	section := p.section(doc)
	if section == nil {
		return []string{}, nil
	}

	var dollars, cents []string
	section.Find(lifeInsureDollars).Each(func(_ int, s *goquery.Selection) {
		dollars = append(dollars, strings.TrimSpace(s.Text()))
	})
	section.Find(lifeInsureCents).Each(func(_ int, s *goquery.Selection) {
		cents = append(cents, strings.TrimSpace(s.Text()))
	})

	premiums := []string{}
	for i := 0; i < len(dollars) && i < len(cents); i++ {
		if dollars[i] == "" || cents[i] == "" {
			continue
		}
		premiums = append(premiums, fmt.Sprintf("$%s.%s", dollars[i], cents[i]))
	}
	return premiums, nil
}

// section finds the header div and returns its parent.
func (p *LifeInsureParser) section(doc *goquery.Document) *goquery.Selection {
	header := doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(ownText(s), lifeInsureSection)
	}).First()
	if header.Length() == 0 {
		return nil
	}
	return header.Parent()
}

func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}
