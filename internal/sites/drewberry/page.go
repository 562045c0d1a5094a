package drewberry

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
	fullLoader   = `[data-test='TS_FULL_LOADER_MODAL']`
	backdrop     = `[data-test='TS_BACKDROP']`
	closeModal   = `[data-test='TS_CLOSE_MODAL']`
	editQuotes   = `xpath=//span[contains(text(), 'Edit Quotes')]`
	submitInput  = `xpath=//input[@type='submit']`
	pleaseWait   = `xpath=//input[@value='Please Wait...']`
	cookieDeny   = `xpath=//span[text()='Deny']`
	lifeOnly     = `#life-only`
	showMore     = `xpath=//span[contains(text(), 'Show More')]`
	occupation   = `#react-select-Occupation__c-input`
	phoneInput   = `[data-test="TS_INPUT_FORM_PHONE"]`
	privacyCheck = `[name="check-privacy"]`
)

// Placeholder contact details the quote form requires.
const (
	placeholderFirstName  = "John"
	placeholderLastName   = "Doe"
	placeholderPhone      = "07386411071"
	placeholderEmail      = "placeholder@nowhere.org"
	placeholderOccupation = "Other - Occupation not listed"
)

// PageForm implements Form and ProfileSubmitter on a playwright page.
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
		logger:  logger.With("component", "drewberry_page"),
	}
}

func (f *PageForm) OpenSession(ctx context.Context, url string) error {
	if err := f.nav.Navigate(ctx, f.page, url); err != nil {
		return err
	}
	if err := browser.WaitReady(f.page, fullLoader, f.timeout); err != nil {
		return err
	}
	if browser.DismissIfPresent(f.page, closeModal) {
		f.logger.Debug("closed sign in prompt")
	}
	return browser.WaitReady(f.page, backdrop, f.timeout)
}

func (f *PageForm) EditCover(coverage, term string) error {
	err := browser.WithinScope(f.openEditor, f.commitEditor, func() error {
		if err := browser.Fill(f.page, "initialLifeCover", coverage); err != nil {
			return err
		}
		return browser.Fill(f.page, "TermYears", term)
	})
	if err != nil {
		return err
	}
	if err := browser.WaitReady(f.page, fullLoader, f.timeout); err != nil {
		return err
	}
	return browser.WaitReady(f.page, backdrop, f.timeout)
}

func (f *PageForm) openEditor() error {
	if err := browser.ScrollTop(f.page); err != nil {
		return err
	}
	return f.page.Locator(editQuotes).First().Click()
}

func (f *PageForm) commitEditor() error {
	return f.page.Locator(submitInput).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(f.timeout.Milliseconds())),
	})
}

func (f *PageForm) Content() (string, error) {
	if err := browser.WaitReady(f.page, fullLoader, f.timeout); err != nil {
		return "", err
	}
	if err := f.page.Locator(lifeOnly).Click(); err != nil {
		return "", fmt.Errorf("failed to filter life only quotes: %w", err)
	}
	if browser.DismissIfPresent(f.page, showMore) {
		f.logger.Debug("expanded quote list")
	}
	return f.page.Content()
}

func (f *PageForm) URL() string {
	return f.page.URL()
}

// SubmitProfile fills the quote form for p and returns the results URL.
func (f *PageForm) SubmitProfile(ctx context.Context, p sites.Profile) (string, error) {
	if err := f.nav.Navigate(ctx, f.page, QuoteFormURL); err != nil {
		return "", err
	}
	browser.DismissIfPresent(f.page, cookieDeny)

	steps := []func() error{
		func() error { return browser.Check(f.page, `input[type='radio'][value='Level']`) },
		func() error { return browser.Check(f.page, fmt.Sprintf(`input[type='radio'][value=%q]`, p.Nicotine)) },
		f.fillOccupation,
		func() error { return browser.Fill(f.page, "dateDD", "01") },
		func() error { return browser.Fill(f.page, "dateMM", "01") },
		func() error { return browser.Fill(f.page, "dateYYYY", strconv.Itoa(p.BirthYear)) },
		func() error { return browser.Fill(f.page, "FirstName", placeholderFirstName) },
		func() error { return browser.Fill(f.page, "LastName", placeholderLastName) },
		func() error { return f.page.Locator(phoneInput).Fill(placeholderPhone) },
		func() error { return browser.Fill(f.page, "email", placeholderEmail) },
		func() error { return browser.Check(f.page, fmt.Sprintf(`input[type='radio'][value=%q]`, p.Gender)) },
		func() error { return f.page.Locator(privacyCheck).Click() },
		func() error { return f.page.Locator(submitInput).First().Click() },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			return "", fmt.Errorf("failed to fill quote form (step %d): %w", i+1, err)
		}
	}

	if err := browser.WaitReady(f.page, pleaseWait, f.timeout); err != nil {
		return "", err
	}
	return f.page.URL(), nil
}

func (f *PageForm) fillOccupation() error {
	input := f.page.Locator(occupation)
	if err := input.Click(); err != nil {
		return err
	}
	if err := input.Fill(placeholderOccupation); err != nil {
		return err
	}
	return input.Press("Enter")
}
