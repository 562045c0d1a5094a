package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/maltedev/life-quote-scraper/internal/combo"
	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/runner"
)

var gridFlags struct {
	site  string
	limit int
}

func init() {
	gridCmd.Flags().StringVar(&gridFlags.site, "site", "lifeinsure", "site whose labels to use")
	gridCmd.Flags().IntVar(&gridFlags.limit, "limit", 20, "number of combinations to list")
	rootCmd.AddCommand(gridCmd)
}

var gridCmd = &cobra.Command{
	Use:   "grid [--site <name>] [--limit N]",
	Short: "Prints the combinations a run would scrape.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		site, err := runner.DefaultRegistry().Lookup(gridFlags.site)
		if err != nil {
			return err
		}

		dims := site.Dimensions(e.grid)
		if err := combo.Validate(dims); err != nil {
			return err
		}

		var first []models.Combination
		for c := range combo.Product(dims) {
			if len(first) >= gridFlags.limit {
				break
			}
			first = append(first, c)
		}

		renderCombinations(os.Stdout, dims, first, combo.Count(dims))
		return nil
	},
}
