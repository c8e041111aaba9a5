// Package cli parses the studybuddy command line and runs the chosen
// subcommand.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"StudyBuddy/internal/backend"
	"StudyBuddy/internal/chatbot"
	"StudyBuddy/internal/client"
	"StudyBuddy/internal/config"
	"StudyBuddy/internal/proxy"
	"StudyBuddy/internal/server"
	"StudyBuddy/internal/session"
	"StudyBuddy/internal/store"
	"StudyBuddy/internal/telemetry"
)

type cmdServe struct {
	Addr string `help:"Listen address (overrides config)."`
}

type cmdChat struct {
	ProxyURL  string `help:"Chat proxy endpoint (overrides config)." name:"proxy-url"`
	Store     string `help:"Transcript store backend: bolt or sqlite (overrides config)."`
	StorePath string `help:"Transcript store file (overrides config)." name:"store-path" type:"path"`
}

// CLI is the command line grammar.
type CLI struct {
	Config string `help:"YAML config file." type:"path" short:"c"`
	Debug  bool   `help:"Enable debug logging."`

	Serve cmdServe `cmd:"" help:"Run the chat proxy and serve the web page."`
	Chat  cmdChat  `cmd:"" help:"Chat in the terminal through a running proxy."`
}

// Stdio carries the streams and exit function used by Run.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Exit   func(int)
}

// DefaultStdio uses the process streams.
func DefaultStdio() Stdio {
	return Stdio{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr, Exit: os.Exit}
}

// Parse parses args without running anything.
func Parse(args []string, stdio Stdio) (*CLI, *kong.Context, error) {
	var cli CLI
	exit := stdio.Exit
	if exit == nil {
		exit = os.Exit
	}
	parser, err := kong.New(&cli,
		kong.Name("studybuddy"),
		kong.Description("A friendly AI study buddy: chat proxy and transcript client."),
		kong.Exit(exit),
		kong.Writers(stdio.Stdout, stdio.Stderr),
		kong.UsageOnError(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build parser: %w", err)
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return nil, nil, err
	}
	return &cli, ctx, nil
}

// Run parses args and executes the subcommand. It returns the process
// exit code.
func Run(args []string, stdio Stdio) (int, error) {
	cli, kctx, err := Parse(args, stdio)
	if err != nil {
		return 2, err
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return 1, err
	}
	if cli.Debug {
		cfg.Log.Debug = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch kctx.Command() {
	case "serve":
		if cli.Serve.Addr != "" {
			cfg.Server.Addr = cli.Serve.Addr
		}
		err = serve(ctx, cfg)
	case "chat":
		cli.Chat.apply(&cfg)
		if err = cfg.Validate(); err == nil {
			err = chat(ctx, cfg, stdio)
		}
	default:
		err = fmt.Errorf("unknown command %q", kctx.Command())
	}
	if err != nil {
		return 1, err
	}
	return 0, nil
}

func (c cmdChat) apply(cfg *config.Config) {
	if c.ProxyURL != "" {
		cfg.Client.ProxyURL = c.ProxyURL
	}
	if c.Store != "" {
		cfg.Client.Store = c.Store
	}
	if c.StorePath != "" {
		cfg.Client.StorePath = c.StorePath
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, closeLog, err := telemetry.InitLogger(cfg.Log, "server")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.Log, "server")
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	if _, ok := cfg.Credential.Lookup(); !ok {
		logger.Warn("no completion credential configured; chat requests will fail", "env", config.APIKeyEnv)
	}

	completions := backend.NewClient(cfg.Completion,
		backend.WithLogger(logger),
		backend.WithTelemetry(tracer, meter),
	)
	chatHandler := proxy.NewHandler(cfg.Credential, completions,
		proxy.WithLogger(logger),
		proxy.WithTelemetry(tracer, meter),
	)

	logger.Info("starting chat proxy",
		"addr", cfg.Server.Addr,
		"endpoint", completions.Endpoint(),
		"model", cfg.Completion.Model,
	)
	return server.New(cfg.Server, chatHandler, logger).Run(ctx)
}

func chat(ctx context.Context, cfg config.Config, stdio Stdio) error {
	logger, closeLog, err := telemetry.InitLogger(cfg.Log, "chat")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	tracer, _, cleanup, err := telemetry.InitTelemetry(ctx, cfg.Log, "chat")
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	unlock, err := store.Lock(cfg.Client.StorePath)
	if err != nil {
		return err
	}
	defer unlock()

	st, err := store.Open(cfg.Client.Store, cfg.Client.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	var c *client.Client
	hook := chatbot.AwaitingHook(stdio.Stdout, func() session.Theme { return c.Theme() })
	c, err = client.New(st, client.NewHTTPCaller(cfg.Client.ProxyURL),
		client.WithLogger(logger),
		client.WithTracer(tracer),
		client.WithAwaitingHook(hook),
	)
	if err != nil {
		return err
	}

	logger.Info("starting terminal chat", "proxy_url", cfg.Client.ProxyURL, "store", cfg.Client.Store)
	return chatbot.New(c, logger).Run(ctx, stdio.Stdin, stdio.Stdout)
}
