package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newClipsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "clips",
		Short: "Show recently assembled clips and their upload status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.LedgerPath == "" {
				return fmt.Errorf("no ledger configured (ledger_path is empty)")
			}

			clipLedger, closeLedger, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer closeLedger()

			records, err := clipLedger.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No clips recorded")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				uploaded := ""
				if r.UploadedAt != nil {
					uploaded = r.UploadedAt.Local().Format("2006-01-02 15:04:05")
				}
				rows = append(rows, []string{
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					r.RelativePath,
					strconv.Itoa(r.Frames),
					string(r.Status),
					strconv.Itoa(r.Attempts),
					uploaded,
					r.LastError,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Created", "Path", "Frames", "Status", "Attempts", "Uploaded", "Last Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of clips to show (0 shows all)")
	return cmd
}
