package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/signbridge/internal/api"
	"github.com/hashicorp-forge/signbridge/internal/cmd/base"
	"github.com/hashicorp-forge/signbridge/internal/config"
	appserver "github.com/hashicorp-forge/signbridge/internal/server"
)

type Command struct {
	*base.Command

	flagConfig          string
	flagAddr            string
	flagShutdownTimeout time.Duration
}

func (c *Command) Synopsis() string {
	return "Run the server"
}

func (c *Command) Help() string {
	return `Usage: signbridge server [options]

  Run the HTTP server that sends Google Drive files to SignNow for
  signature.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("server", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"[SIGNBRIDGE_CONFIG] Path to config file",
	)
	f.StringVar(
		&c.flagAddr, "addr", "",
		"Address to listen on (overrides listen_addr)",
	)
	f.DurationVar(
		&c.flagShutdownTimeout, "shutdown-timeout", 30*time.Second,
		"Time to wait for in-flight requests on shutdown",
	)

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cfgPath := c.flagConfig
	if val, ok := os.LookupEnv("SIGNBRIDGE_CONFIG"); ok && cfgPath == "" {
		cfgPath = val
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error loading config: %v", err))
		return 1
	}
	if c.flagAddr != "" {
		cfg.ListenAddr = c.flagAddr
	}
	c.Log.SetLevel(hclog.LevelFromString(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv, err := appserver.New(ctx, cfg, c.Log, appserver.Options{})
	if err != nil {
		c.UI.Error(fmt.Sprintf("error initializing server: %v", err))
		return 1
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(*srv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Log.Info("listening", "addr", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			c.UI.Error(fmt.Sprintf("error starting listener: %v", err))
			return 1
		}
	case <-ctx.Done():
		c.Log.Info("shutting down", "timeout", c.flagShutdownTimeout)

		shutdownCtx, shutdownCancel := context.WithTimeout(
			context.Background(), c.flagShutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			c.UI.Error(fmt.Sprintf("error shutting down server: %v", err))
			return 1
		}
	}

	return 0
}
