package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const drewberryPrice = `span[class*="QuoteCardContent_Price"]`

// DrewberryParser reads the quote card prices of the UK comparison page.
type DrewberryParser struct{}

func NewDrewberryParser() *DrewberryParser {
	return &DrewberryParser{}
}

func (p *DrewberryParser) ParsePremiums(html string) ([]string, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	premiums := []string{}
	doc.Find(drewberryPrice).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			premiums = append(premiums, text)
		}
	})
	return premiums, nil
}
