package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/digkill/StageRank/internal/excel"
	"github.com/digkill/StageRank/internal/service"
)

func NewStagesCommand(_ *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Manage the stage catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Add the default A1..E5 catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.db.Close()

			result, err := service.NewStageService(e.db).EnsureDefaultCatalog(cmd.Context())
			if err != nil {
				return err
			}
			printImport(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Load stages from an .xlsx or .csv file",
		Long: `Load stages from a workbook (sheet "Stages") or a CSV file.
Column A holds the stage code, column B the title; the first row is a header.
Codes already in the catalog are left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := excel.ReadCatalog(args[0])
			if err != nil {
				return err
			}

			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.db.Close()

			entries := make([]service.CatalogEntry, 0, len(rows))
			for _, row := range rows {
				entries = append(entries, service.CatalogEntry{Code: row.Code, Title: row.Title})
			}
			result, err := service.NewStageService(e.db).Import(cmd.Context(), entries)
			if err != nil {
				return err
			}
			printImport(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the stage catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.db.Close()

			stages, err := service.NewStageService(e.db).List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tTITLE")
			for _, s := range stages {
				fmt.Fprintf(w, "%s\t%s\n", s.Code, s.Title)
			}
			return w.Flush()
		},
	})

	return cmd
}

func printImport(out, errOut io.Writer, result *service.ImportResult) {
	fmt.Fprintf(out, "%d created, %d skipped\n", result.Created, result.Skipped)
	for _, msg := range result.Errors {
		fmt.Fprintln(errOut, msg)
	}
}
