package cli

import (
	"github.com/spf13/cobra"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/db"
)

func newMigrateCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := db.New(cmd.Context(), rt.cfg.PGDSN, 2)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			rt.logger.Info("migrations applied")
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied state of every migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := db.New(cmd.Context(), rt.cfg.PGDSN, 2)
			if err != nil {
				return err
			}
			defer pool.Close()
			return db.MigrationStatus(cmd.Context(), pool)
		},
	})
	return cmd
}
