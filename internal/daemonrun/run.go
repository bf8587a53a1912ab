package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"soundcheck/internal/config"
	"soundcheck/internal/daemon"
	"soundcheck/internal/deps"
	"soundcheck/internal/gateway"
	"soundcheck/internal/ipc"
	"soundcheck/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the soundcheck daemon and blocks until SIGINT/SIGTERM or cmdCtx
// is canceled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("soundcheck-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update soundcheck.log link: %v\n", err)
	}
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "soundcheck.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	gw, closeGateway, err := gateway.FromConfig(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("build gateway", logging.Error(err))
		return err
	}
	defer closeGateway()

	d, err := daemon.New(cfg, gw, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	// Lock before binding: NewServer unlinks any existing socket file.
	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("soundcheck ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("socket", cfg.Paths.SocketPath),
		logging.String("reference", cfg.Paths.ReferenceAsset),
	)

	<-signalCtx.Done()
	logger.Info("soundcheck daemon shutting down")
	if path := gw.FlushResults(context.WithoutCancel(signalCtx)); path != "" {
		logger.Info("final results flushed", logging.String("path", path))
	}
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "soundcheck.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("skip_audio", cfg.Fingerprint.SkipAudio),
		logging.Bool("native_fallback", cfg.Decoder.NativeFallback),
		logging.Bool("history_enabled", cfg.Results.HistoryEnabled),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
	}
	for _, status := range deps.CheckBinaries(deps.DecoderRequirements(cfg)) {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
