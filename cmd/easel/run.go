package main

import (
	"context"
	"os"

	"github.com/aretw0/easel"
	"github.com/aretw0/easel/internal/cli"
	"github.com/aretw0/easel/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <script.yaml>",
	Short: "Replay an editing script",
	Long: `Runs each step of a YAML script against a fresh editor and prints the
resulting element tree. With --session the run resumes from, and checkpoints
to, a persisted session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		quiet, _ := cmd.Flags().GetBool("quiet")
		sessionID, _ := cmd.Flags().GetString("session")
		configPath, _ := cmd.Flags().GetString("config")
		fresh, _ := cmd.Flags().GetBool("fresh")

		out := cmd.OutOrStdout()
		if !quiet {
			tui.PrintBanner(out, easel.Version)
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		report, err := cli.Execute(sigCtx, cli.RunOptions{
			ScriptPath:  args[0],
			ConfigPath:  configPath,
			SessionID:   sessionID,
			SessionsDir: sessionsDir(cmd),
			Fresh:       fresh,
			Debug:       debug,
			Quiet:       quiet,
			Out:         out,
		})
		cli.LogCompletion(out, report, err, quiet, sigCtx.Signal())
		if err != nil {
			return err
		}
		if sigCtx.Signal() != nil {
			os.Exit(130)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("session", "s", "", "Persist and resume the run under this session id")
	runCmd.Flags().StringP("config", "c", "", "YAML or JSON config file merged under the script config")
	runCmd.Flags().Bool("fresh", false, "Discard the session checkpoint before running")
	runCmd.Flags().BoolP("quiet", "q", false, "Only report errors")
}
