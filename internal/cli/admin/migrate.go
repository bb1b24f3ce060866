package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cutroom-ai/cutroom/internal/config"
)

// MigrateCmd returns the migrate command, which applies pending schema
// migrations and exits.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runMigrations(cfg.DatabaseURL)
		},
	}
}
