package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/maltedev/life-quote-scraper/internal/browser"
	"github.com/maltedev/life-quote-scraper/internal/combo"
	"github.com/maltedev/life-quote-scraper/internal/runner"
	"github.com/maltedev/life-quote-scraper/internal/sites/drewberry"
	"github.com/maltedev/life-quote-scraper/internal/storage"
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions [--grid FILE]",
	Short: "Collects the drewberry results URL of every risk profile.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}

		store, err := storage.NewSessionStore(e.cfg.Scraper.SessionFile)
		if err != nil {
			return err
		}
		profiles := combo.Collect(combo.Product(drewberry.ProfileDimensions(e.grid)))

		b, err := browser.New(runner.BrowserOptions(e.cfg), e.logger)
		if err != nil {
			return err
		}
		defer b.Close()

		page, err := b.NewPage()
		if err != nil {
			return err
		}
		defer page.Close()

		form := drewberry.NewPageForm(b, page, e.cfg.Browser.ReadyTimeout, e.logger)
		collector := drewberry.NewCollector(form, store, e.logger)
		res, err := collector.Collect(cmd.Context(), profiles)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle("drewberry sessions")
		t.AppendHeader(table.Row{"Expected", "Cached", "Collected", "Failed", "Missing", "Stored"})
		t.AppendRow(table.Row{res.Expected, res.Cached, res.Collected, res.Failed, len(collector.Missing(profiles)), store.Len()})
		t.SetStyle(table.StyleRounded)
		t.Render()

		return err
	},
}
