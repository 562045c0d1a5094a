package lifeinsure

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/life-quote-scraper/internal/browser"
	"github.com/maltedev/life-quote-scraper/internal/sites"
)

const (
	loader       = `div[x-show='loading && !resultsModalOpen']`
	editLink     = `xpath=//a[contains(text(), 'Edit')]`
	updateButton = `xpath=//button[@type='submit']`
	viewMore     = `xpath=//div[contains(text(), 'No Medical Exam Policies')]/..//a[contains(text(), 'View')]`
)

// Baseline values for the fields the grid does not vary. State does not
// affect premiums on this site.
const (
	baselineState  = "Alabama"
	baselineHeight = "510"
	baselineWeight = "167"
)

// PageForm implements Form on a playwright page.
type PageForm struct {
	nav     sites.Navigator
	page    playwright.Page
	timeout time.Duration
	logger  *slog.Logger
}

func NewPageForm(nav sites.Navigator, page playwright.Page, readyTimeout time.Duration, logger *slog.Logger) *PageForm {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageForm{
		nav:     nav,
		page:    page,
		timeout: readyTimeout,
		logger:  logger.With("component", "lifeinsure_page"),
	}
}

func (f *PageForm) Open(ctx context.Context, url string) error {
	if err := f.nav.Navigate(ctx, f.page, url); err != nil {
		return err
	}

	steps := []func() error{
		func() error { return browser.ClickText(f.page, "Male") },
		func() error { return browser.SelectByValue(f.page, "coverage", "100000") },
		func() error { return browser.ClickText(f.page, TermLabel(10)) },
		func() error { return browser.SelectByLabel(f.page, "state", baselineState) },
		func() error { return browser.ClickText(f.page, "No") },
		func() error { return f.page.Locator("#mm").Fill("1") },
		func() error { return f.page.Locator("#dd").Fill("1") },
		func() error { return f.page.Locator("#yyyy").Fill("2000") },
		func() error { return browser.Fill(f.page, "height", baselineHeight) },
		func() error { return browser.Fill(f.page, "weight", baselineWeight) },
		func() error { return browser.ClickText(f.page, "Average") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("failed to fill baseline form (step %d): %w", i+1, err)
		}
	}

	return browser.WaitReady(f.page, loader, f.timeout)
}

func (f *PageForm) SetCoverage(amount string) error {
	if err := browser.SelectByValue(f.page, "coverage_amount", amount); err != nil {
		return err
	}
	return browser.WaitReady(f.page, loader, f.timeout)
}

func (f *PageForm) SetTerm(label string) error {
	if err := browser.ScrollTop(f.page); err != nil {
		return err
	}
	if err := browser.SelectByLabel(f.page, "category_code", label); err != nil {
		return err
	}
	return browser.WaitReady(f.page, loader, f.timeout)
}

func (f *PageForm) SetState(state string) error {
	if err := browser.SelectByLabel(f.page, "state", state); err != nil {
		return err
	}
	return browser.WaitReady(f.page, loader, f.timeout)
}

func (f *PageForm) EditProfile(p sites.Profile) error {
	err := browser.WithinScope(f.openEditor, f.commitEditor, func() error {
		if err := browser.SelectByLabel(f.page, "tobaccotime", p.Nicotine); err != nil {
			return err
		}
		if err := browser.SelectByValue(f.page, "dob_year", strconv.Itoa(p.BirthYear)); err != nil {
			return err
		}
		return browser.ClickText(f.page, p.Gender)
	})
	if err != nil {
		return err
	}
	return browser.WaitReady(f.page, loader, f.timeout)
}

func (f *PageForm) openEditor() error {
	if err := browser.ScrollTop(f.page); err != nil {
		return err
	}
	return f.page.Locator(editLink).First().Click()
}

func (f *PageForm) commitEditor() error {
	return f.page.Locator(updateButton).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(f.timeout.Milliseconds())),
	})
}

func (f *PageForm) Content() (string, error) {
	if browser.DismissIfPresent(f.page, viewMore) {
		f.logger.Debug("expanded no medical exam results")
	}
	return f.page.Content()
}
