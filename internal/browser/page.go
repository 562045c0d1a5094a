package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// WaitReady blocks until the loader matched by selector is hidden or the
// timeout expires. Expiry is returned as an error for the current
// combination only.
func WaitReady(page playwright.Page, selector string, timeout time.Duration) error {
	err := page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("page not ready (%s): %w", selector, err)
	}
	return nil
}

// WithinScope opens a scoped panel, runs fn and always runs commit afterwards,
// also when fn fails or panics. A panic in fn is re-raised after commit.
// The returned error joins the failures of fn and commit.
func WithinScope(open, commit func() error, fn func() error) (err error) {
	if err := open(); err != nil {
		return fmt.Errorf("failed to open edit panel: %w", err)
	}

	defer func() {
		r := recover()
		if cerr := commit(); cerr != nil {
			cerr = fmt.Errorf("failed to commit edit panel: %w", cerr)
			if err == nil {
				err = cerr
			} else {
				err = fmt.Errorf("%w; %w", err, cerr)
			}
		}
		if r != nil {
			panic(r)
		}
	}()

	return fn()
}

func ScrollTop(page playwright.Page) error {
	if _, err := page.Evaluate("window.scrollTo(0, 0)"); err != nil {
		return fmt.Errorf("failed to scroll to top: %w", err)
	}
	return nil
}

// SelectByValue picks a dropdown option by its value attribute.
func SelectByValue(page playwright.Page, name, value string) error {
	_, err := page.Locator(fmt.Sprintf(`select[name=%q]`, name)).SelectOption(playwright.SelectOptionValues{
		Values: &[]string{value},
	})
	if err != nil {
		return fmt.Errorf("failed to select %q for %s: %w", value, name, err)
	}
	return nil
}

// SelectByLabel picks a dropdown option by its visible text.
func SelectByLabel(page playwright.Page, name, label string) error {
	_, err := page.Locator(fmt.Sprintf(`select[name=%q]`, name)).SelectOption(playwright.SelectOptionValues{
		Labels: &[]string{label},
	})
	if err != nil {
		return fmt.Errorf("failed to select %q for %s: %w", label, name, err)
	}
	return nil
}

// Fill replaces the contents of the named input.
func Fill(page playwright.Page, name, value string) error {
	if err := page.Locator(fmt.Sprintf(`[name=%q]`, name)).First().Fill(value); err != nil {
		return fmt.Errorf("failed to fill %s: %w", name, err)
	}
	return nil
}

// Check clicks the element matched by selector unless it is already checked.
func Check(page playwright.Page, selector string) error {
	loc := page.Locator(selector).First()
	if checked, err := loc.IsChecked(); err == nil && checked {
		return nil
	}
	if err := loc.Click(); err != nil {
		return fmt.Errorf("failed to check %s: %w", selector, err)
	}
	return nil
}

// ClickText clicks the first element whose normalized text equals text.
func ClickText(page playwright.Page, text string) error {
	loc := page.Locator(fmt.Sprintf(`xpath=//*[normalize-space(text())=%q]`, text)).First()
	if err := loc.Click(); err != nil {
		return fmt.Errorf("failed to click %q: %w", text, err)
	}
	return nil
}

// DismissIfPresent clicks an optional overlay such as a cookie banner or a
// sign-in prompt. It reports whether anything was clicked.
func DismissIfPresent(page playwright.Page, selector string) bool {
	loc := page.Locator(selector).First()
	count, err := loc.Count()
	if err != nil || count == 0 {
		return false
	}
	if visible, _ := loc.IsVisible(); !visible {
		return false
	}
	return loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}) == nil
}
