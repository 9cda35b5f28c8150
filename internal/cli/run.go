package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/easel"
	"github.com/aretw0/easel/internal/presentation/tui"
	"github.com/aretw0/easel/pkg/actions"
	"github.com/aretw0/easel/pkg/adapters/file"
	"github.com/aretw0/easel/pkg/config"
	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/observability"
	"github.com/aretw0/easel/pkg/session"
)

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	ScriptPath  string
	ConfigPath  string
	SessionID   string
	SessionsDir string
	Fresh       bool
	Debug       bool
	Quiet       bool
	Out         io.Writer
}

// Report summarises a script run.
type Report struct {
	Steps  int
	Failed int
	Final  domain.State
	Tree   *domain.ElementTree
	Loaded bool
}

// ErrStepFailed is returned when a step fails that the script did not expect to.
var ErrStepFailed = errors.New("script step failed")

// Execute runs a script against a fresh editor, optionally resuming from and
// checkpointing to a file-backed session.
func Execute(ctx context.Context, opts RunOptions) (*Report, error) {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	logger := createLogger(opts.Debug)

	script, err := LoadScript(opts.ScriptPath)
	if err != nil {
		return nil, err
	}
	initial, err := script.InitialState()
	if err != nil {
		return nil, err
	}

	providers := []config.Provider{}
	if opts.ConfigPath != "" {
		fileCfg, err := config.FileProvider(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fileCfg)
	}
	// Script values override the config file.
	providers = append(providers, config.Static(script.Config))

	editorOpts := []easel.Option{
		easel.WithLogger(logger),
		easel.WithInitialState(initial),
		easel.WithConfigProviders(providers...),
	}
	if opts.Debug {
		editorOpts = append(editorOpts, easel.WithLifecycleHooks(observability.LoggingHooks(logger)))
	}
	ed, err := easel.New(editorOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing editor: %w", err)
	}
	if _, err := actions.Register(ed); err != nil {
		return nil, err
	}

	report := &Report{}
	var sessions *session.Manager
	if opts.SessionID != "" {
		sessions = session.NewManager(file.New(opts.SessionsDir), session.WithLogger(logger))
		if opts.Fresh {
			_ = sessions.Delete(ctx, opts.SessionID)
		}
		loaded, err := resume(ctx, ed, sessions, opts.SessionID)
		if err != nil {
			return nil, err
		}
		report.Loaded = loaded
		logSessionStatus(logger, out, opts.SessionID, loaded, opts.Quiet)
	}

	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return report, handleExecutionError(err)
		}
		report.Steps++
		err := runStep(ctx, ed, step)
		switch {
		case err == nil && step.ExpectError:
			report.Failed++
			return report, fmt.Errorf("%w: step %d (%s) succeeded, expected an error", ErrStepFailed, i+1, step)
		case err != nil && !step.ExpectError:
			report.Failed++
			return report, fmt.Errorf("%w: step %d (%s): %w", ErrStepFailed, i+1, step, err)
		}
		if !opts.Quiet {
			status := "ok"
			if err != nil {
				status = "failed as expected: " + err.Error()
			}
			printSystemMessage(out, "%d. %s %s", i+1, step, status)
		}
	}

	report.Final = ed.State()
	if tree, err := ed.GetElementTree(ctx, ""); err == nil {
		report.Tree = tree
		if !opts.Quiet {
			fmt.Fprintln(out)
			tui.PrintTree(out, tree, report.Final.String(domain.SliceActiveElement))
		}
	} else {
		logger.Debug("no element tree to print", "err", err)
	}

	if sessions != nil {
		if err := sessions.Save(ctx, opts.SessionID, ed.Snapshot()); err != nil {
			return report, fmt.Errorf("failed to checkpoint session: %w", err)
		}
		if !opts.Quiet {
			printSystemMessage(out, "Session '%s' saved.", opts.SessionID)
		}
	}
	return report, nil
}

func runStep(ctx context.Context, ed *easel.Editor, step Step) error {
	switch step.Do {
	case "":
		_, err := ed.Trigger(ctx, domain.NewAction(step.Action, step.Args))
		return err
	case OpUndo:
		ed.Undo()
	case OpRedo:
		ed.Redo()
	case OpStartBatch:
		ed.StartBatch()
	case OpEndBatch:
		ed.EndBatch()
	case OpDisableHistory:
		ed.DisableHistory()
	case OpEnableHistory:
		ed.EnableHistory()
	default:
		return fmt.Errorf("unknown operation %q", step.Do)
	}
	return nil
}

// resume loads the session's last checkpoint into ed, if one exists.
func resume(ctx context.Context, ed *easel.Editor, sessions *session.Manager, sessionID string) (bool, error) {
	snap, err := sessions.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if err := ed.Load(snap); err != nil {
		return false, err
	}
	return true, nil
}

func logSessionStatus(logger *slog.Logger, out io.Writer, sessionID string, loaded, quiet bool) {
	if loaded {
		logger.Info("session resumed", "session_id", sessionID)
		if !quiet {
			printSystemMessage(out, "Resuming session '%s'...", sessionID)
		}
		return
	}
	logger.Info("session created", "session_id", sessionID)
	if !quiet {
		printSystemMessage(out, "Session '%s' active.", sessionID)
	}
}
