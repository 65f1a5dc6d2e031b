package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/b-tok/asbplayer-linux/internal/capture"
)

var (
	recordDuration time.Duration
	recordOut      string
	recordTarget   string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture audio once and write it to a WAV file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := setup()
		if err != nil {
			return err
		}
		defer closeLog()

		duration := recordDuration
		if duration == 0 {
			duration = cfg.DefaultDuration
		}
		target := cfg.TargetApp
		if recordTarget != "" {
			target = recordTarget
			cfg.TargetDisplayName = recordTarget
		}

		orch := newOrchestrator(cfg)
		res := orch.Capture(context.WithoutCancel(cmd.Context()), capture.Request{Target: target, Duration: duration})
		if !res.OK() {
			return errors.New(res.Reason)
		}

		data, err := base64.StdEncoding.DecodeString(res.AudioBase64)
		if err != nil {
			return fmt.Errorf("decode capture: %w", err)
		}
		if err := os.WriteFile(recordOut, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", recordOut, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(data), recordOut)
		return nil
	},
}

func init() {
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "how long to record (default from config, 5s)")
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "capture.wav", "output WAV file")
	recordCmd.Flags().StringVar(&recordTarget, "target", "", "application to capture (default from config)")
}
