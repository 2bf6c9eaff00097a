package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/signbridge/internal/config"
	"github.com/hashicorp-forge/signbridge/pkg/drive"
	"github.com/hashicorp-forge/signbridge/pkg/signing"
	"github.com/hashicorp-forge/signbridge/pkg/signnow"
)

// Signer executes a signing run.
type Signer interface {
	Run(ctx context.Context, req signing.Request) (*signing.Result, error)
}

// Server contains the server configuration.
type Server struct {
	// Config is the config for the server.
	Config *config.Config

	// Logger is the logger for the server.
	Logger hclog.Logger

	// Signer runs the download, upload and invite pipeline.
	Signer Signer
}

// Options override the dependencies New builds from the config. Zero values
// use the defaults.
type Options struct {
	Fs         afero.Fs
	HTTPClient *http.Client
}

// New builds a Server with a signing orchestrator wired to Google Drive and
// SignNow as described by cfg.
func New(ctx context.Context, cfg *config.Config, logger hclog.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.HTTPClient == nil {
		timeout, err := cfg.HTTPTimeout()
		if err != nil {
			return nil, err
		}
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}

	fetcher, err := drive.NewFetcher(ctx, drive.Config{
		Mode:            cfg.Drive.Mode,
		BaseURL:         cfg.Drive.BaseURL,
		APIKey:          cfg.Drive.APIKey,
		CredentialsFile: cfg.Drive.CredentialsFile,
		HTTPClient:      opts.HTTPClient,
		Fs:              opts.Fs,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating drive fetcher: %w", err)
	}

	client, err := signnow.NewClient(signnow.Config{
		BaseURL: cfg.SignNow.BaseURL,
		Credentials: signnow.Credentials{
			Username:       cfg.SignNow.Username,
			Password:       cfg.SignNow.Password,
			Scope:          cfg.SignNow.Scope,
			GrantType:      cfg.SignNow.GrantType,
			ExpirationTime: cfg.SignNow.ExpirationTime,
			BasicToken:     cfg.SignNow.BasicToken,
		},
		HTTPClient: opts.HTTPClient,
		Fs:         opts.Fs,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating signnow client: %w", err)
	}

	orchestrator, err := signing.NewOrchestrator(signing.Config{
		Fetcher:     fetcher,
		Provider:    client,
		Fs:          opts.Fs,
		DownloadDir: cfg.DownloadDir,
		Invite:      InviteSettings(cfg.Invite),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating orchestrator: %w", err)
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		Signer: orchestrator,
	}, nil
}

// InviteSettings converts the invite config block. A nil block yields the
// default settings.
func InviteSettings(inv *config.Invite) signing.InviteSettings {
	if inv == nil {
		return signing.DefaultInviteSettings()
	}

	s := signing.InviteSettings{
		Role:    inv.Role,
		From:    inv.From,
		Subject: inv.Subject,
		Message: inv.Message,
	}
	if inv.Field != nil {
		x, y := inv.Field.Position()
		s.Field = signing.FieldPlacement{
			X:          x,
			Y:          y,
			Width:      inv.Field.Width,
			Height:     inv.Field.Height,
			PageNumber: inv.Field.PageNumber,
		}
	}
	return s
}
