package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yeti47/mocap/client"
	"github.com/yeti47/mocap/retention"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [dir]",
		Short: "List a remote directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := quietLogger()

			store, err := ctx.connect(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Quit()

			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			entries, err := retention.NewManager(store, logger).ListFiles(cmd.Context(), dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No entries")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				kind, size := "file", humanSize(entry.Size)
				switch entry.Kind {
				case client.EntryDir:
					kind, size = "dir", ""
				case client.EntryOther:
					kind = "other"
				}
				modified := ""
				if !entry.ModifiedAt.IsZero() {
					modified = entry.ModifiedAt.Local().Format("2006-01-02 15:04:05")
				}
				rows = append(rows, []string{entry.Name, kind, modified, size})
			}
			fmt.Fprintln(out, renderTable([]string{"Name", "Type", "Modified", "Size"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <remote> [local]",
		Short: "Download a remote file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := quietLogger()

			remote := args[0]
			local := path.Base(remote)
			if len(args) == 2 {
				local = args[1]
			}

			store, err := ctx.connect(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Quit()

			if dir := filepath.Dir(local); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}
			file, err := os.Create(local)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", local, err)
			}

			if err := store.Retrieve(remote, file); err != nil {
				file.Close()
				os.Remove(local)
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", local, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Fetched %s to %s\n", remote, local)
			return nil
		},
	}
}
