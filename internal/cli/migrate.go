package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/digkill/StageRank/internal/service"
)

func NewMigrateCommand(_ *RootOptions) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.db.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", e.db.Dialect.Name)
			if !seed {
				return nil
			}
			result, err := service.NewStageService(e.db).EnsureDefaultCatalog(cmd.Context())
			if err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog: %d created, %d already present\n", result.Created, result.Skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "also add the default A1..E5 catalog")
	return cmd
}
