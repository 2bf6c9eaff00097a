package send

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/signbridge/internal/cmd/base"
	"github.com/hashicorp-forge/signbridge/internal/config"
	"github.com/hashicorp-forge/signbridge/internal/server"
	"github.com/hashicorp-forge/signbridge/pkg/signing"
)

type Command struct {
	*base.Command

	flagConfig     string
	flagFileID     string
	flagEmail      string
	flagFileName   string
	flagSignerName string
}

func (c *Command) Synopsis() string {
	return "Send a single Drive file for signature"
}

func (c *Command) Help() string {
	return `Usage: signbridge send -file-id=<id> -email=<address> [options]

  Download a Google Drive file, upload it to SignNow and invite the
  signer. The result is printed as JSON.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("send", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"[SIGNBRIDGE_CONFIG] Path to config file",
	)
	f.StringVar(
		&c.flagFileID, "file-id", "",
		"Google Drive file ID",
	)
	f.StringVar(
		&c.flagEmail, "email", "",
		"Email address of the signer",
	)
	f.StringVar(
		&c.flagFileName, "name", "",
		"Local file name without extension (defaults to the file ID)",
	)
	f.StringVar(
		&c.flagSignerName, "signer-name", "",
		"Name prefilled in the signature",
	)

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	req := signing.Request{
		FileID:     c.flagFileID,
		Email:      c.flagEmail,
		FileName:   c.flagFileName,
		SignerName: c.flagSignerName,
	}
	if err := req.Validate(); err != nil {
		c.UI.Error(fmt.Sprintf("invalid arguments: %v", err))
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
	c.Log.SetLevel(hclog.LevelFromString(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv, err := server.New(ctx, cfg, c.Log, server.Options{})
	if err != nil {
		c.UI.Error(fmt.Sprintf("error initializing: %v", err))
		return 1
	}

	result, err := srv.Signer.Run(ctx, req)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error sending document for signature: %s",
			signing.Detail(err)))
		return 1
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		c.UI.Error(fmt.Sprintf("error encoding result: %v", err))
		return 1
	}
	c.UI.Output(string(out))

	return 0
}
