// Package drive downloads Google Drive files to local storage.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultPublicBaseURL hosts the public export links.
const DefaultPublicBaseURL = "https://drive.google.com"

const (
	ModePublic = "public"
	ModeAPI    = "api"
)

// StatusError is a non-success response from Drive.
type StatusError struct {
	FileID     string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("drive download of %q failed with status %d %s",
		e.FileID, e.StatusCode, e.Status)
}

// ErrInvalidFileName is returned for file names that do not name a file.
var ErrInvalidFileName = errors.New("invalid file name")

// Config contains configuration for the Fetcher.
type Config struct {
	// Mode is ModePublic (default) or ModeAPI.
	Mode string

	// BaseURL overrides the export host in public mode or the API endpoint in
	// api mode.
	BaseURL string

	// APIKey and CredentialsFile authenticate api mode. With neither set,
	// requests are unauthenticated and sent through HTTPClient.
	APIKey          string
	CredentialsFile string

	HTTPClient *http.Client
	Fs         afero.Fs
	Logger     hclog.Logger
}

// Fetcher writes Drive files to a filesystem.
type Fetcher struct {
	source source
	fs     afero.Fs
	logger hclog.Logger
}

// source opens the content stream of a Drive file.
type source interface {
	open(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// NewFetcher creates a Fetcher for cfg.Mode.
func NewFetcher(ctx context.Context, cfg Config) (*Fetcher, error) {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	var src source
	switch cfg.Mode {
	case "", ModePublic:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultPublicBaseURL
		}
		src = &publicSource{baseURL: strings.TrimSuffix(baseURL, "/"), client: cfg.HTTPClient}
	case ModeAPI:
		s, err := newAPISource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		src = s
	default:
		return nil, fmt.Errorf("unknown drive mode: %q", cfg.Mode)
	}

	return &Fetcher{
		source: src,
		fs:     cfg.Fs,
		logger: cfg.Logger.Named("drive"),
	}, nil
}

// Fetch downloads fileID to destDir/fileName and returns the local path. The
// body is streamed to disk; the path is returned only once the file has been
// fully written and closed. destDir is created if missing.
func (f *Fetcher) Fetch(ctx context.Context, fileID, destDir, fileName string) (string, error) {
	name := filepath.Base(fileName)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, fileName)
	}

	if err := f.fs.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("error creating download directory: %w", err)
	}

	body, err := f.source.open(ctx, fileID)
	if err != nil {
		return "", err
	}
	defer body.Close()

	dest := filepath.Join(destDir, name)
	out, err := f.fs.Create(dest)
	if err != nil {
		return "", fmt.Errorf("error creating local file: %w", err)
	}

	n, err := io.Copy(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := f.fs.Remove(dest); rmErr != nil {
			f.logger.Warn("error removing partial download", "path", dest, "error", rmErr)
		}
		return "", fmt.Errorf("error writing local file: %w", err)
	}

	f.logger.Info("file downloaded", "file_id", fileID, "path", dest, "bytes", n)
	return dest, nil
}

// DownloadURL returns the public direct-download link for fileID.
func DownloadURL(baseURL, fileID string) string {
	if baseURL == "" {
		baseURL = DefaultPublicBaseURL
	}
	return fmt.Sprintf("%s/uc?export=download&id=%s",
		strings.TrimSuffix(baseURL, "/"), url.QueryEscape(fileID))
}

type publicSource struct {
	baseURL string
	client  *http.Client
}

func (s *publicSource) open(ctx context.Context, fileID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, DownloadURL(s.baseURL, fileID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive download request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{
			FileID:     fileID,
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
		}
	}

	return resp.Body, nil
}

type apiSource struct {
	files *drivev3.FilesService
}

func newAPISource(ctx context.Context, cfg Config) (*apiSource, error) {
	var opts []option.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimSuffix(cfg.BaseURL, "/")+"/"))
	}

	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		opts = append(opts,
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(drivev3.DriveReadonlyScope),
		)
	default:
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithHTTPClient(cfg.HTTPClient),
		)
	}

	svc, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating drive service: %w", err)
	}

	return &apiSource{files: svc.Files}, nil
}

func (s *apiSource) open(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := s.files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &StatusError{
				FileID:     fileID,
				StatusCode: gerr.Code,
				Status:     http.StatusText(gerr.Code),
			}
		}
		return nil, fmt.Errorf("drive download request failed: %w", err)
	}

	return resp.Body, nil
}
