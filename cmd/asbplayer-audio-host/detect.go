package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/b-tok/asbplayer-linux/internal/executor"
	"github.com/b-tok/asbplayer-linux/internal/soundserver"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print the detected sound server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := setup()
		if err != nil {
			return err
		}
		defer closeLog()

		kind := soundserver.NewDetector(cfg, executor.ExecRunner{}).Detect(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), kind)
		return nil
	},
}
