package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lifeInsurePage = `<html><body>
<h2 x-show="noResults" style="display: none;">Your original search had no results</h2>
<div class="results">
  <div class="group">
    <div class="group-title">Fully Underwritten Policies</div>
    <span x-text="getModalPrice(row, paymentMode).split('.')[0]">99</span>
    <span x-text="getModalPrice(row, paymentMode).split('.')[1]">00</span>
  </div>
  <div class="group">
    <div class="group-title">No Medical Exam Policies</div>
    <div class="row">
      $<span x-text="getModalPrice(row, paymentMode).split('.')[0]">14</span>.<span x-text="getModalPrice(row, paymentMode).split('.')[1]">32</span>
    </div>
    <div class="row">
      $<span x-text="getModalPrice(row, paymentMode).split('.')[0]">1,021</span>.<span x-text="getModalPrice(row, paymentMode).split('.')[1]">05</span>
    </div>
    <div class="row">
      $<span x-text="getModalPrice(row, paymentMode).split('.')[0]"></span>.<span x-text="getModalPrice(row, paymentMode).split('.')[1]"></span>
    </div>
    <a href="#">View more</a>
  </div>
</div>
</body></html>`

func TestLifeInsureParser_ParsePremiums(t *testing.T) {
	p := NewLifeInsureParser()

	tests := []struct {
		name     string
		html     string
		expected []string
		err      error
	}{
		{
			name:     "No medical exam section",
			html:     lifeInsurePage,
			expected: []string{"$14.32", "$1,021.05"},
		},
		{
			name: "Visible no results banner",
			html: `<h2>Your original search had no results</h2>
				<div><div>No Medical Exam Policies</div><span x-text="getModalPrice(row, paymentMode).split('.')[0]">1</span></div>`,
			err: ErrNoResultsBanner,
		},
		{
			name: "Banner hidden by ancestor",
			html: `<div style="display:none"><h2>Your original search had no results</h2></div>
				<div><div>No Medical Exam Policies</div></div>`,
			expected: []string{},
		},
		{
			name:     "Missing section",
			html:     `<div><div>Fully Underwritten Policies</div></div>`,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			premiums, err := p.ParsePremiums(tt.html)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, premiums)
		})
	}
}

func TestDrewberryParser_ParsePremiums(t *testing.T) {
	p := NewDrewberryParser()

	html := `<div class="QuoteCard_root">
		<span class="QuoteCardContent_Price__x8a1">£9.81</span>
		<span class="QuoteCardContent_Label__aa">per month</span>
	</div>
	<div class="QuoteCard_root">
		<span class="QuoteCardContent_Price__x8a1"> £12.40 </span>
	</div>
	<div class="QuoteCard_root"><span class="QuoteCardContent_Price__x8a1"></span></div>`

	premiums, err := p.ParsePremiums(html)
	require.NoError(t, err)
	assert.Equal(t, []string{"£9.81", "£12.40"}, premiums)

	premiums, err = p.ParsePremiums(`<div>No quotes available</div>`)
	require.NoError(t, err)
	assert.Empty(t, premiums)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"$14.32", 14.32, false},
		{"$1,021.05", 1021.05, false},
		{"£9.81", 9.81, false},
		{"12", 12, false},
		{"n/a", 0, true},
		{"$1.2.3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}
