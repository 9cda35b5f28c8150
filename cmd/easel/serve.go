package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/easel/internal/cli"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve editor sessions over HTTP",
	Long: `Starts an HTTP server that keeps one editor per session. Sessions are
checkpointed to .easel/sessions, or to Redis when --redis is set.
Checkpoints are encrypted when EASEL_ENCRYPTION_KEY holds a hex AES-256 key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		handler, closeStore, err := cli.NewServer(serveOptions(cmd))
		if err != nil {
			return err
		}
		defer closeStore()

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Fprintf(cmd.OutOrStdout(), "Starting Easel Server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			fmt.Fprintf(cmd.OutOrStdout(), "\nStart shutdown... Signal: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			// Event streams never finish on their own, so Close follows a timed-out Shutdown.
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Graceful shutdown did not complete in %v: %v\n", shutdownTimeout, err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Easel Server stopped gracefully")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	addSessionFlags(serveCmd)
}

// addSessionFlags registers the flags that shape the session pool.
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("template", "t", "", "Script whose state seeds new sessions")
	cmd.Flags().StringP("config", "c", "", "YAML or JSON config file")
	cmd.Flags().String("redis", "", "Redis address for sessions and locks (password from EASEL_REDIS_PASSWORD)")
	cmd.Flags().Duration("session-ttl", 0, "Expire Redis sessions after this long (0 keeps them)")
	cmd.Flags().Duration("lock-ttl", 0, "Lease of the per-session Redis lock")
	cmd.Flags().Bool("auto-checkpoint", false, "Checkpoint after every mutation")
	cmd.Flags().Bool("json-logs", false, "Log as JSON")
	cmd.Flags().StringSlice("mask", nil, "Regexps of element data keys masked in checkpoints")
}

func serveOptions(cmd *cobra.Command) cli.ServeOptions {
	opts := cli.ServeOptions{SessionsDir: sessionsDir(cmd), LogLevel: "info"}
	opts.Template, _ = cmd.Flags().GetString("template")
	opts.ConfigPath, _ = cmd.Flags().GetString("config")
	opts.RedisAddr, _ = cmd.Flags().GetString("redis")
	opts.RedisPassword = os.Getenv("EASEL_REDIS_PASSWORD")
	opts.SessionTTL, _ = cmd.Flags().GetDuration("session-ttl")
	opts.LockTTL, _ = cmd.Flags().GetDuration("lock-ttl")
	opts.AutoCheckpoint, _ = cmd.Flags().GetBool("auto-checkpoint")
	opts.JSONLogs, _ = cmd.Flags().GetBool("json-logs")
	opts.MaskPatterns, _ = cmd.Flags().GetStringSlice("mask")
	opts.EncryptionKey = os.Getenv("EASEL_ENCRYPTION_KEY")
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		opts.LogLevel = "debug"
	}
	return opts
}
