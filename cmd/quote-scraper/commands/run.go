package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maltedev/life-quote-scraper/internal/browser"
	"github.com/maltedev/life-quote-scraper/internal/database"
	"github.com/maltedev/life-quote-scraper/internal/events"
	"github.com/maltedev/life-quote-scraper/internal/runner"
	"github.com/maltedev/life-quote-scraper/internal/sink"
)

var runFlags struct {
	site     string
	output   string
	rounds   int
	postgres bool
	headless bool
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.site, "site", "", "site to scrape (lifeinsure or drewberry)")
	f.StringVar(&runFlags.output, "output", "", "output directory; defaults to SCRAPER_OUTPUT_DIR")
	f.IntVar(&runFlags.rounds, "rounds", 0, "retry rounds; defaults to the site's budget")
	f.BoolVar(&runFlags.postgres, "postgres", false, "also store the run in Postgres")
	f.BoolVar(&runFlags.headless, "headless", true, "run the browser headless")
	_ = runCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run --site <lifeinsure|drewberry>",
	Short: "Scrapes one site and writes its quotes to CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if runFlags.output != "" {
			e.cfg.Scraper.OutputDir = runFlags.output
		}
		if runFlags.rounds > 0 {
			e.cfg.Scraper.MaxRounds = runFlags.rounds
		}
		if cmd.Flags().Changed("headless") {
			e.cfg.Browser.Headless = runFlags.headless
		}

		site, err := runner.DefaultRegistry().Lookup(runFlags.site)
		if err != nil {
			return err
		}

		b, err := browser.New(runner.BrowserOptions(e.cfg), e.logger)
		if err != nil {
			return err
		}
		defer b.Close()

		r := runner.New(b, e.grid, e.cfg, e.logger)
		csvSink := r.OutputSink(site)
		out := sink.Multi{csvSink}

		var failRun func(error)
		if runFlags.postgres {
			db, pgSink, fail, err := openPostgres(cmd.Context(), e, site.Name)
			if err != nil {
				return err
			}
			defer db.Close()
			out = append(out, pgSink)
			failRun = fail
		}

		report, err := r.Run(cmd.Context(), site.Name, out)
		if report != nil {
			renderReport(os.Stdout, site.Name, r.MaxRounds(site), report)
			fmt.Fprintln(os.Stdout, "results written to", csvSink.Path())
		}
		if err != nil && failRun != nil {
			failRun(err)
		}
		return err
	},
}

// openPostgres creates the run record and the sink that completes it.
func openPostgres(ctx context.Context, e *env, site string) (*database.DB, sink.Sink, func(error), error) {
	db, err := database.New(ctx, database.Config{
		Host:     e.cfg.Database.Host,
		Port:     e.cfg.Database.Port,
		User:     e.cfg.Database.User,
		Password: e.cfg.Database.Password,
		Database: e.cfg.Database.DBName,
		SSLMode:  e.cfg.Database.SSLMode,
		MaxConns: e.cfg.Database.MaxConns,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	runs := database.NewRunRepository(db)
	run, err := runs.Create(ctx, site)
	if err == nil {
		err = runs.MarkRunning(ctx, run.ID)
	}
	if err != nil {
		db.Close()
		return nil, nil, nil, errors.Join(errors.New("failed to register run"), err)
	}

	publisher := events.NewPublisher(database.NewOutboxRepository(db), e.logger)
	pgSink := sink.NewPostgres(db, database.NewQuoteRepository(db), runs, publisher, run, e.logger)
	fail := func(runErr error) {
		if err := runs.MarkFailed(context.WithoutCancel(ctx), run.ID, runErr); err != nil {
			e.logger.Error("failed to mark run failed", "run_id", run.ID, "error", err)
		}
	}
	return db, pgSink, fail, nil
}
