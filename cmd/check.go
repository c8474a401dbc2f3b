package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/utility-billing/internal/config"
	"github.com/jmehdipour/utility-billing/internal/repository"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Print row counts of every table (-1 = table missing)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		st, closeDB, err := openMySQL(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		counts, err := st.TableCounts(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TABLE\tROWS")
		for _, tbl := range repository.Tables {
			fmt.Fprintf(tw, "%s\t%d\n", tbl, counts[tbl])
		}
		return tw.Flush()
	},
}
