package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/b-tok/asbplayer-linux/internal/manifest"
)

var (
	manifestBrowser      string
	manifestExtensionIDs []string
	manifestHostPath     string
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Generate or install the native messaging manifest",
}

var manifestPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the manifest for a browser",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, m, err := buildManifest()
		if err != nil {
			return err
		}
		data, err := m.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var manifestInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the manifest into the browser's per-user directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		browser, m, err := buildManifest()
		if err != nil {
			return err
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		path, err := manifest.Install(browser, m, home)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", path)
		return nil
	},
}

var manifestUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the manifest from the browser's per-user directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		browser, err := manifest.ParseBrowser(manifestBrowser)
		if err != nil {
			return err
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		path, err := manifest.Uninstall(browser, home)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", path)
		return nil
	},
}

func buildManifest() (manifest.Browser, *manifest.Manifest, error) {
	browser, err := manifest.ParseBrowser(manifestBrowser)
	if err != nil {
		return "", nil, err
	}
	hostPath := manifestHostPath
	if hostPath == "" {
		if hostPath, err = os.Executable(); err != nil {
			return "", nil, fmt.Errorf("find host binary: %w", err)
		}
	}
	if hostPath, err = filepath.Abs(hostPath); err != nil {
		return "", nil, err
	}
	m, err := manifest.Build(browser, hostPath, manifestExtensionIDs)
	return browser, m, err
}

func init() {
	manifestCmd.PersistentFlags().StringVar(&manifestBrowser, "browser", string(manifest.Firefox), "firefox, chromium or chrome")
	manifestCmd.PersistentFlags().StringSliceVar(&manifestExtensionIDs, "extension-id", nil, "extension id allowed to connect (repeatable)")
	manifestCmd.PersistentFlags().StringVar(&manifestHostPath, "host-path", "", "absolute path of the host binary (default: this executable)")

	manifestCmd.AddCommand(manifestPrintCmd)
	manifestCmd.AddCommand(manifestInstallCmd)
	manifestCmd.AddCommand(manifestUninstallCmd)
}
