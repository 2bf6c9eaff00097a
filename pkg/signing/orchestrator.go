// Package signing sends a Google Drive file out for e-signature.
//
// A run downloads the file, uploads it to SignNow, places a signature field
// on it and invites the recipient. The downloaded copy is deleted before Run
// returns, whatever the outcome.
package signing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"

	"github.com/hashicorp-forge/signbridge/pkg/signnow"
)

// SuccessMessage is returned with every successful run.
const SuccessMessage = "Documento enviado para assinatura com sucesso"

// Fetcher downloads a Drive file into destDir.
type Fetcher interface {
	Fetch(ctx context.Context, fileID, destDir, fileName string) (string, error)
}

// SignatureProvider is the subset of the SignNow API a run needs.
type SignatureProvider interface {
	Authenticate(ctx context.Context) (*oauth2.Token, error)
	UploadDocument(ctx context.Context, token *oauth2.Token, path string) (string, error)
	AddSignatureField(ctx context.Context, token *oauth2.Token, documentID string, field signnow.Field) (json.RawMessage, error)
	GetDocument(ctx context.Context, token *oauth2.Token, documentID string) (*signnow.Document, error)
	SendInvite(ctx context.Context, token *oauth2.Token, documentID string, invite signnow.Invite) (json.RawMessage, error)
}

var _ SignatureProvider = (*signnow.Client)(nil)

// FieldPlacement is where the signature field goes on the document.
type FieldPlacement struct {
	X          int
	Y          int
	Width      int
	Height     int
	PageNumber int
}

// InviteSettings configures the signature field and invitation text. The
// zero value is replaced by DefaultInviteSettings.
type InviteSettings struct {
	Role    string
	From    string
	Subject string
	Message string
	Field   FieldPlacement
}

// DefaultInviteSettings returns the settings used when none are configured.
func DefaultInviteSettings() InviteSettings {
	return InviteSettings{
		Role:    "Signer 1",
		From:    "associacao_comercial@acsp.com.br",
		Subject: "Favor assinar o documento",
		Message: "Olá, você foi convidado a assinar o documento.",
		Field: FieldPlacement{
			X:          300,
			Y:          700,
			Width:      100,
			Height:     25,
			PageNumber: 1,
		},
	}
}

// Config holds configuration for the Orchestrator.
type Config struct {
	Fetcher  Fetcher
	Provider SignatureProvider

	// Fs must be the filesystem Fetcher writes to. Defaults to the OS.
	Fs afero.Fs

	// DownloadDir is the parent of each run's private download directory.
	DownloadDir string

	Invite InviteSettings
	Logger hclog.Logger
}

// Orchestrator runs the signing pipeline. It keeps no per-run state and may
// be shared by concurrent requests.
type Orchestrator struct {
	fetcher     Fetcher
	provider    SignatureProvider
	fs          afero.Fs
	downloadDir string
	invite      InviteSettings
	logger      hclog.Logger
}

// Result is the outcome of a successful run.
type Result struct {
	Message    string          `json:"message"`
	DocumentID string          `json:"documentId"`
	Invite     json.RawMessage `json:"invite"`

	RunID   string  `json:"-"`
	RoleID  string  `json:"-"`
	History []State `json:"-"`
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("signature provider is required")
	}
	if cfg.DownloadDir == "" {
		return nil, fmt.Errorf("download directory is required")
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.Invite == (InviteSettings{}) {
		cfg.Invite = DefaultInviteSettings()
	}

	return &Orchestrator{
		fetcher:     cfg.Fetcher,
		provider:    cfg.Provider,
		fs:          cfg.Fs,
		downloadDir: cfg.DownloadDir,
		invite:      cfg.Invite,
		logger:      cfg.Logger.Named("orchestrator"),
	}, nil
}

// run is the state of a single pipeline execution.
type run struct {
	id     string
	dir    string
	logger hclog.Logger
	states *tracker

	localPath  string
	token      *oauth2.Token
	documentID string
	roleID     string
	invite     json.RawMessage
}

// Run executes the pipeline for req. Steps run in order and the first error
// stops the run; nothing is retried and remote side effects that already
// happened are not rolled back. The local download is removed before Run
// returns.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	id := uuid.NewString()
	r := &run{
		id:     id,
		dir:    filepath.Join(o.downloadDir, id),
		logger: o.logger.With("run_id", id),
		states: newTracker(),
	}

	start := time.Now()
	r.logger.Info("starting signing run", "file_id", req.FileID, "email", req.Email)

	err := o.execute(ctx, r, req)
	o.cleanup(r)

	final := StateDone
	if err != nil {
		final = StateFailed
	}
	if tErr := r.states.transition(final); tErr != nil {
		r.logger.Error("invalid final transition", "error", tErr)
	}

	if err != nil {
		var serr *StepError
		if errors.As(err, &serr) {
			serr.History = r.states.history
		}
		r.logger.Error("signing run failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	r.logger.Info("signing run completed",
		"document_id", r.documentID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		Message:    SuccessMessage,
		DocumentID: r.documentID,
		Invite:     r.invite,
		RunID:      r.id,
		RoleID:     r.roleID,
		History:    r.states.history,
	}, nil
}

// execute walks the working states. It stops at the first failure, leaving
// the run in the failing state.
func (o *Orchestrator) execute(ctx context.Context, r *run, req Request) error {
	steps := []struct {
		state State
		fn    func() error
	}{
		{StateValidating, req.Validate},
		{StateDownloading, func() (err error) {
			r.localPath, err = o.fetcher.Fetch(ctx, req.FileID, r.dir, req.localName())
			return err
		}},
		{StateAuthenticating, func() (err error) {
			r.token, err = o.provider.Authenticate(ctx)
			return err
		}},
		{StateUploading, func() (err error) {
			r.documentID, err = o.provider.UploadDocument(ctx, r.token, r.localPath)
			return err
		}},
		{StateFieldEditing, func() error {
			f := o.invite.Field
			field := signnow.SignatureField(o.invite.Role, f.X, f.Y, f.Width, f.Height, f.PageNumber)
			_, err := o.provider.AddSignatureField(ctx, r.token, r.documentID, field)
			return err
		}},
		{StateReadingInfo, func() error {
			doc, err := o.provider.GetDocument(ctx, r.token, r.documentID)
			if err != nil {
				return err
			}
			r.roleID, err = SelectRole(doc.Roles, o.invite.Role)
			return err
		}},
		{StateInviting, func() (err error) {
			r.invite, err = o.provider.SendInvite(ctx, r.token, r.documentID, o.buildInvite(r, req))
			return err
		}},
	}

	for _, step := range steps {
		if step.state != r.states.current {
			if err := r.states.transition(step.state); err != nil {
				return &StepError{State: r.states.current, Kind: KindInternal, Err: err}
			}
		}
		r.logger.Debug("entering state", "state", step.state)

		if err := step.fn(); err != nil {
			return &StepError{
				State: step.state,
				Kind:  classify(step.state, err),
				Err:   err,
			}
		}
	}

	return nil
}

func (o *Orchestrator) buildInvite(r *run, req Request) signnow.Invite {
	return signnow.Invite{
		DocumentID: r.documentID,
		From:       o.invite.From,
		To: []signnow.Recipient{{
			Email:                req.Email,
			RoleID:               r.roleID,
			Role:                 o.invite.Role,
			Order:                1,
			PrefillSignatureName: req.SignerName,
			Subject:              o.invite.Subject,
			Message:              o.invite.Message,
		}},
	}
}

// cleanup removes the run's download and its private directory. Failures are
// logged and never change the outcome of the run.
func (o *Orchestrator) cleanup(r *run) {
	if err := r.states.transition(StateCleanup); err != nil {
		r.logger.Error("invalid cleanup transition", "error", err)
	}

	if r.localPath != "" {
		if err := o.fs.Remove(r.localPath); err != nil && !os.IsNotExist(err) {
			r.logger.Error("error deleting local file", "path", r.localPath, "error", err)
		} else {
			r.logger.Debug("local file deleted", "path", r.localPath)
		}
	}

	if err := o.fs.Remove(r.dir); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("error deleting run directory", "path", r.dir, "error", err)
	}
}

// SelectRole returns the unique ID of the role named name. When no role has
// that name and the document has exactly one role, that role is used.
func SelectRole(roles []signnow.Role, name string) (string, error) {
	for _, role := range roles {
		if role.Name == name && role.UniqueID != "" {
			return role.UniqueID, nil
		}
	}

	if len(roles) == 1 && roles[0].UniqueID != "" {
		return roles[0].UniqueID, nil
	}

	return "", fmt.Errorf("%w: want %q, document has %d roles", ErrNoMatchingRole, name, len(roles))
}
