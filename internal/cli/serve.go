package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/aretw0/easel"
	"github.com/aretw0/easel/internal/logging"
	"github.com/aretw0/easel/pkg/actions"
	"github.com/aretw0/easel/pkg/adapters/file"
	easelhttp "github.com/aretw0/easel/pkg/adapters/http"
	"github.com/aretw0/easel/pkg/adapters/mcp"
	"github.com/aretw0/easel/pkg/adapters/redis"
	"github.com/aretw0/easel/pkg/config"
	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/dsl"
	"github.com/aretw0/easel/pkg/observability"
	"github.com/aretw0/easel/pkg/persistence/middleware"
	"github.com/aretw0/easel/pkg/ports"
	"github.com/aretw0/easel/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ServeOptions configures the HTTP server.
type ServeOptions struct {
	// Template is a script whose state seeds every new session.
	Template       string
	ConfigPath     string
	SessionsDir    string
	RedisAddr      string
	RedisPassword  string
	SessionTTL     time.Duration
	LockTTL        time.Duration
	AutoCheckpoint bool
	// EncryptionKey is a hex AES-256 key; checkpoints are stored encrypted when set.
	EncryptionKey string
	// MaskPatterns are regexps of data keys masked before checkpointing.
	MaskPatterns []string
	LogLevel     string
	JSONLogs     bool
	LogOutput    io.Writer
}

// NewServer wires the session pool, persistence and metrics behind an
// http.Handler. The returned close func releases the backend.
func NewServer(opts ServeOptions) (http.Handler, func() error, error) {
	b, err := openPool(opts)
	if err != nil {
		return nil, nil, err
	}
	handler := easelhttp.NewHandler(b.pool,
		easelhttp.WithLogger(b.logger),
		easelhttp.WithMetrics(b.registry),
	)
	return handler, b.close, nil
}

// NewMCPServer serves the same session pool as NewServer to MCP clients.
func NewMCPServer(opts ServeOptions) (*mcp.Server, func() error, error) {
	b, err := openPool(opts)
	if err != nil {
		return nil, nil, err
	}
	return mcp.NewServer(b.pool, mcp.WithLogger(b.logger)), b.close, nil
}

type poolBackend struct {
	pool     *easelhttp.Pool
	registry *prometheus.Registry
	logger   *slog.Logger
	close    func() error
}

func openPool(opts ServeOptions) (*poolBackend, error) {
	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := logging.NewWithWriter(out, level, opts.JSONLogs)

	// Without a template every session starts as an empty page.
	initial, err := dsl.New("root", "page").Build()
	if err != nil {
		return nil, err
	}
	var scriptConfig map[string]any
	if opts.Template != "" {
		script, err := LoadScript(opts.Template)
		if err != nil {
			return nil, err
		}
		if initial, err = script.InitialState(); err != nil {
			return nil, err
		}
		scriptConfig = script.Config
	}

	providers := []config.Provider{}
	if opts.ConfigPath != "" {
		fileCfg, err := config.FileProvider(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fileCfg)
	}
	providers = append(providers, config.Static(scriptConfig))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	hooks := domain.ComposeHooks(
		observability.NewMetrics(reg).Hooks(),
		observability.LoggingHooks(logger),
	)

	backend, closeStore, managerOpts := openBackend(opts, logger)
	store, err := withMiddleware(backend, opts)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	managerOpts = append(managerOpts, session.WithLogger(logger))
	if opts.LockTTL > 0 {
		managerOpts = append(managerOpts, session.WithLockTTL(opts.LockTTL))
	}

	factory := func(sessionID string) (ports.Editor, error) {
		ed, err := easel.New(
			easel.WithName(sessionID),
			easel.WithLogger(logger),
			easel.WithInitialState(initial),
			easel.WithConfigProviders(providers...),
			easel.WithLifecycleHooks(hooks),
		)
		if err != nil {
			return nil, fmt.Errorf("error initializing editor: %w", err)
		}
		if _, err := actions.Register(ed); err != nil {
			return nil, err
		}
		return ed, nil
	}

	pool := easelhttp.NewPool(factory,
		session.NewManager(store, managerOpts...),
		easelhttp.WithAutoCheckpoint(opts.AutoCheckpoint),
		easelhttp.WithPoolLogger(logger),
	)
	return &poolBackend{pool: pool, registry: reg, logger: logger, close: closeStore}, nil
}

// withMiddleware wraps the backend with masking and encryption, masking first
// so no plain value reaches the cipher.
func withMiddleware(repo ports.SnapshotRepository, opts ServeOptions) (ports.SnapshotRepository, error) {
	var mws []middleware.Middleware
	for _, p := range opts.MaskPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("invalid mask pattern: %w", err)
		}
	}
	if len(opts.MaskPatterns) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(opts.MaskPatterns))
	}
	if opts.EncryptionKey != "" {
		key, err := hex.DecodeString(opts.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("invalid encryption key: need 32 bytes, got %d", len(key))
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	return middleware.Chain(repo, mws...), nil
}

// openBackend picks Redis when an address is given, the session directory otherwise.
func openBackend(opts ServeOptions, logger *slog.Logger) (ports.SnapshotRepository, func() error, []session.Option) {
	if opts.RedisAddr == "" {
		logger.Info("using file session store", "dir", opts.SessionsDir)
		return file.New(opts.SessionsDir), func() error { return nil }, nil
	}

	logger.Info("using redis session store", "addr", opts.RedisAddr)
	store := redis.New(opts.RedisAddr, opts.RedisPassword, 0, redis.WithTTL(opts.SessionTTL))
	locker := redis.NewLocker(store.Client(), redis.DefaultPrefix)
	return store, store.Close, []session.Option{session.WithLocker(locker)}
}
