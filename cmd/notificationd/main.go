package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codefionn/notificationd/internal/config"
	"github.com/codefionn/notificationd/internal/consts"
	"github.com/codefionn/notificationd/internal/control"
	"github.com/codefionn/notificationd/internal/display"
	"github.com/codefionn/notificationd/internal/logger"
	"github.com/codefionn/notificationd/internal/pidfile"
	"github.com/codefionn/notificationd/internal/relay"
	"github.com/codefionn/notificationd/internal/server"
	"github.com/codefionn/notificationd/internal/store"
)

type options struct {
	configPath  string
	bind        string
	wsBind      string
	client      string
	login       string
	sink        string
	noHistory   bool
	noConsume   bool
	noReconnect bool
	logLevel    string
	writeConfig bool
	showVersion bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet(consts.AppName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", config.GetConfigPath(), "Path to the configuration file (.json, .yaml)")
	fs.StringVar(&opts.bind, "bind", "", "TCP address to listen on (overrides config)")
	fs.StringVar(&opts.wsBind, "websocket", "", "Address of the WebSocket listener (overrides config)")
	fs.StringVar(&opts.client, "client", "", "Run as forwarding client of the server at host:port")
	fs.StringVar(&opts.login, "login", "", "Login used in client mode (default <user>@<host>)")
	fs.StringVar(&opts.sink, "sink", "", "Display sink in client mode: terminal or notify-send")
	fs.BoolVar(&opts.noHistory, "no-history", false, "Disable notification history")
	fs.BoolVar(&opts.noConsume, "no-consume", false, "Client mode: do not request notifications")
	fs.BoolVar(&opts.noReconnect, "no-reconnect", false, "Client mode: exit when the connection drops")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
	fs.BoolVar(&opts.writeConfig, "write-config", false, "Write the effective configuration to --config and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags]\n\n", consts.AppName)
		fmt.Fprintf(stderr, "Runs the notification relay server, or a forwarding client with --client.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

// apply lets flags override the loaded configuration
func (o *options) apply(cfg *config.Config) {
	if o.bind != "" {
		cfg.Bind = o.bind
	}
	if o.wsBind != "" {
		cfg.WebSocketBind = o.wsBind
	}
	if o.login != "" {
		cfg.Client.Login = o.login
	}
	if o.sink != "" {
		cfg.Client.Sink = o.sink
	}
	if o.noHistory {
		cfg.History.Enabled = false
	}
	if o.noConsume {
		cfg.Client.Consume = false
	}
	if o.noReconnect {
		cfg.Client.Reconnect = false
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
}

func run(args []string) (err error) {
	opts, err := parseArgs(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Printf("%s %s\n", consts.AppName, consts.Version)
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.writeConfig {
		if err := cfg.Save(opts.configPath); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Wrote %s\n", opts.configPath)
		return nil
	}

	if err := logger.Init(cfg.Level(), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PIDFile != "" {
		pid := pidfile.New(cfg.PIDFile)
		if err := pid.Acquire(); err != nil {
			return err
		}
		defer func() {
			if err := pid.Release(); err != nil {
				logger.Warn("%v", err)
			}
		}()
	}

	go watchConfig(ctx, opts)

	if opts.client != "" {
		return runClient(ctx, cfg, opts.client)
	}
	return runServer(ctx, cfg)
}

// watchConfig applies log level changes made to the config file while running.
// An explicit --log-level pins the level.
func watchConfig(ctx context.Context, opts *options) {
	err := config.Watch(ctx, opts.configPath, func(cfg *config.Config) {
		if opts.logLevel != "" {
			return
		}
		if level := cfg.Level(); level != logger.Global().GetLevel() {
			logger.Info("Log level changed to %s", level)
			logger.Global().SetLevel(level)
		}
	})
	if err != nil {
		logger.Warn("Config reload disabled: %v", err)
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	if !cfg.History.Enabled {
		logger.Info("Notification history disabled")
		return store.Disabled{}, nil
	}
	st, err := store.OpenSQLite(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	logger.Info("Notification history at %s", st.Path())
	return st, nil
}

func controlSocket(cfg *config.Config) string {
	if cfg.Control.SocketPath != "" {
		return cfg.Control.SocketPath
	}
	return control.Address(os.Getuid())
}

func startControl(cfg *config.Config, provider control.Provider, gatherer prometheus.Gatherer) (func(), error) {
	if !cfg.Control.Enabled {
		return func() {}, nil
	}
	ctl := control.NewServer(controlSocket(cfg), provider, gatherer, logger.Global())
	if err := ctl.Start(); err != nil {
		return nil, err
	}
	return func() {
		if err := ctl.Stop(); err != nil {
			logger.Warn("Failed to stop control server: %v", err)
		}
	}, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("Failed to close history: %v", err)
		}
	}()

	metrics := server.NewMetrics()
	reg := server.NewRegistry(st, server.Options{
		DefaultConsume: cfg.DefaultConsume,
		HistoryLimit:   cfg.History.Limit,
		SendQueueSize:  cfg.SendQueueSize,
		Metrics:        metrics,
	})
	if err := reg.Seed(ctx); err != nil {
		return err
	}

	srv := server.New(server.Config{
		Bind:           cfg.Bind,
		WebSocketBind:  cfg.WebSocketBind,
		MaxConnections: cfg.MaxConnections,
	}, reg)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	stopControl, err := startControl(cfg, srv, metrics.Registry)
	if err != nil {
		_ = srv.Stop()
		return err
	}
	defer stopControl()

	logger.Info("%s %s ready", consts.AppName, consts.Version)
	<-ctx.Done()
	logger.Info("Shutting down")
	return srv.Stop()
}

func runClient(ctx context.Context, cfg *config.Config, addr string) error {
	sink, err := display.New(cfg.Client.Sink)
	if err != nil {
		return err
	}

	client := relay.New(relay.Config{
		Server:    addr,
		Login:     cfg.Client.Login,
		Consume:   cfg.Client.Consume,
		Reconnect: cfg.Client.Reconnect,
	}, sink)

	stopControl, err := startControl(cfg, client, nil)
	if err != nil {
		return err
	}
	defer stopControl()

	return client.Run(ctx)
}
