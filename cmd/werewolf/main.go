package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/werewolf-client/internal/client"
	"github.com/DoyleJ11/werewolf-client/internal/config"
	"github.com/DoyleJ11/werewolf-client/internal/conn"
	"github.com/DoyleJ11/werewolf-client/internal/console"
	"github.com/DoyleJ11/werewolf-client/internal/debugapi"
	"github.com/DoyleJ11/werewolf-client/internal/logging"
	"github.com/DoyleJ11/werewolf-client/internal/metrics"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type flags struct {
	addr      string
	name      string
	debugAddr string
	logLevel  string
	logFormat string
	envFile   string
	noColor   bool
}

func main() {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "werewolf",
		Short: "Terminal client for the werewolf game server",
		Long: `Play a werewolf game from the terminal.

The client connects to a game server, shows the chat, your role and the
current phase, and lets you answer votes with /vote.

Examples:
  werewolf --addr 192.168.1.20 --name Alice
  werewolf --addr ws://game.example.org/ws --name Bob
  werewolf                      # then /connect <host> <name>`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, f)
		},
	}

	rootCmd.Flags().StringVarP(&f.addr, "addr", "a", "", "Server address to join on start (host[:port] or ws:// URL)")
	rootCmd.Flags().StringVarP(&f.name, "name", "n", "", "Player name")
	rootCmd.Flags().StringVar(&f.debugAddr, "debug-addr", "", "Serve /healthz, /state, /log and /metrics on this address")
	rootCmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format (console or json)")
	rootCmd.Flags().StringVar(&f.envFile, "env-file", ".env", "Dotenv file to load if present")
	rootCmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cobra.Command, f flags) error {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return err
	}

	// Flags win over the environment.
	set := cmd.Flags().Changed
	if set("addr") {
		cfg.ServerAddr = f.addr
	}
	if set("name") {
		cfg.Name = f.name
	}
	if set("debug-addr") {
		cfg.DebugAddr = f.debugAddr
	}
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	con := console.New(os.Stdout, useColor(f.noColor), cfg.Name)
	cl := client.New(ctx, con, client.Options{
		Dialer: conn.NewDialer(cfg.DefaultPort),
		Conn: conn.Options{
			ReadBuffer:     cfg.ReadBuffer,
			MaxRecordBytes: cfg.MaxRecordBytes,
		},
		InboxSize:    cfg.InboxSize,
		ChatRate:     cfg.ChatRate,
		ChatBurst:    cfg.ChatBurst,
		LogRetention: cfg.LogRetention,
		Logger:       logger,
		Metrics:      m,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.DebugAddr != "" {
		srv = &http.Server{
			Addr:              cfg.DebugAddr,
			Handler:           debugapi.SetupRoutes(cl, reg, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("debug server listening", zap.String("addr", cfg.DebugAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		// Leaving the console ends the program.
		defer cancel()
		if cfg.ServerAddr != "" {
			if err := con.Exec(gctx, cl, "/connect "+cfg.ServerAddr+" "+cfg.Name); err != nil {
				return err
			}
		}
		err := con.Run(gctx, os.Stdin, cl)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		err := cl.Close()
		if srv != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			err = multierr.Append(err, srv.Shutdown(shutdownCtx))
		}
		return err
	})

	return ignoreStopped(g.Wait())
}

func ignoreStopped(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, client.ErrStopped) {
		return nil
	}
	return err
}

// useColor enables ANSI colors when stdout is a terminal and NO_COLOR is unset.
func useColor(disabled bool) bool {
	if disabled || os.Getenv("NO_COLOR") != "" {
		return false
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
