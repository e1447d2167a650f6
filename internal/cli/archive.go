package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewArchiveCommand(_ *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export the per-stage leaderboards once",
		Long: `Render every stage leaderboard into one workbook. With --out the file is
written locally, otherwise it is uploaded to the configured S3 bucket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.db.Close()

			archive, err := newArchiveService(e.cfg, e.db, e.log)
			if err != nil {
				return err
			}

			if out != "" {
				data, err := archive.Workbook(cmd.Context())
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write workbook: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
				return nil
			}

			url, err := archive.Upload(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the workbook to this path instead of uploading")
	return cmd
}
