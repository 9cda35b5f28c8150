package main

import (
	"fmt"

	"github.com/aretw0/easel/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted sessions",
	Long:  `List, inspect, and remove sessions stored in .easel/sessions.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all persisted sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListSessions(cmd.Context(), getStore(cmd), cmd.OutOrStdout())
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the checkpoint of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pretty, _ := cmd.Flags().GetBool("pretty")
		return cli.InspectSession(cmd.Context(), getStore(cmd), args[0], pretty, cmd.OutOrStdout())
	},
}

var sessionTreeCmd = &cobra.Command{
	Use:   "tree <session-id> [element-id]",
	Short: "Print the element tree of a session",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootID := ""
		if len(args) == 2 {
			rootID = args[1]
		}
		format, _ := cmd.Flags().GetString("format")
		return cli.PrintSessionTree(cmd.Context(), getStore(cmd), args[0], rootID, format, cmd.OutOrStdout())
	},
}

// treeCmd is a shortcut for "session tree".
var treeCmd = &cobra.Command{
	Use:   sessionTreeCmd.Use,
	Short: sessionTreeCmd.Short,
	Args:  sessionTreeCmd.Args,
	RunE:  sessionTreeCmd.RunE,
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := getStore(cmd)
		failed := 0
		for _, sessionID := range args {
			if err := cli.RemoveSession(cmd.Context(), store, sessionID, cmd.OutOrStdout()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d session(s) could not be removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionTreeCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	rootCmd.AddCommand(treeCmd)
	for _, c := range []*cobra.Command{sessionTreeCmd, treeCmd} {
		c.Flags().StringP("format", "f", cli.FormatText, "Output format: text or mermaid")
	}

	sessionInspectCmd.Flags().Bool("pretty", false, "Render the checkpoint as markdown")
}
