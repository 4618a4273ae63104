package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/persistence/postgres"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply, roll back or list schema migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		rt, err := bootstrap(ctx, "migrate")
		if err != nil {
			return err
		}
		defer rt.Close()

		migrator, err := rt.Migrator()
		if err != nil {
			return err
		}

		switch args[0] {
		case "up":
			applied, err := migrator.Migrate(ctx)
			if err != nil {
				return err
			}
			rt.Logger.Info("migrations applied", logger.Int("count", applied))
		case "down":
			if err := migrator.Rollback(ctx); err != nil {
				return err
			}
			rt.Logger.Info("last migration rolled back")
		case "status":
			migrations, err := migrator.Status(ctx)
			if err != nil {
				return err
			}
			return printStatus(migrations)
		}
		return nil
	},
}

func printStatus(migrations []postgres.Migration) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, m := range migrations {
		applied := "pending"
		if m.IsApplied {
			applied = m.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
	}
	return w.Flush()
}
