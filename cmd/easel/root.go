package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/easel/pkg/adapters/file"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "easel",
	Short: "Easel is the event-action core of a page-builder editor",
	Long: `Easel replays editing scripts against the editor core, inspects
persisted sessions and serves editor sessions over HTTP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("dir", ".", "Project directory holding the .easel folder")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

func sessionsDir(cmd *cobra.Command) string {
	projectDir, _ := cmd.Flags().GetString("dir")
	if projectDir == "" {
		projectDir = "."
	}
	return filepath.Join(projectDir, ".easel", "sessions")
}

func getStore(cmd *cobra.Command) *file.Store {
	return file.New(sessionsDir(cmd))
}
