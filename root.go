package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var testFlag bool

	ctx := newCommandContext(&configFlag, &testFlag)

	rootCmd := &cobra.Command{
		Use:           "mocap",
		Short:         "Motion-triggered capture with remote clip shipping and retention",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "config.json", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&testFlag, "test", false, "Use an in-memory remote store instead of FTP")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newPurgeCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newFetchCommand(ctx))
	rootCmd.AddCommand(newClipsCommand(ctx))

	return rootCmd
}
