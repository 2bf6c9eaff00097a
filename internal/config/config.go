package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

const (
	// DriveModePublic downloads files through the public export link.
	DriveModePublic = "public"

	// DriveModeAPI downloads files through the Drive v3 API.
	DriveModeAPI = "api"
)

// Config contains the signbridge configuration.
//
// Example configuration (HCL):
//
//	listen_addr  = ":3000"
//	download_dir = "downloads"
//
//	signnow {
//	  username    = "bot@example.com"
//	  scope       = "*"
//	}
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `hcl:"listen_addr,optional"`

	// DownloadDir is where Drive files are staged before upload. Relative
	// paths resolve against the working directory.
	DownloadDir string `hcl:"download_dir,optional"`

	// Timeout bounds every outbound HTTP request ("0s" disables it).
	Timeout string `hcl:"timeout,optional"`

	// LogLevel is the hclog level name (trace, debug, info, warn, error).
	LogLevel string `hcl:"log_level,optional"`

	Drive   *Drive   `hcl:"drive,block"`
	SignNow *SignNow `hcl:"signnow,block"`
	Invite  *Invite  `hcl:"invite,block"`
}

// Drive configures how files are fetched from Google Drive.
type Drive struct {
	// Mode is "public" (export link) or "api" (Drive v3 API).
	Mode string `hcl:"mode,optional"`

	// APIKey authenticates Drive API downloads of link-shared files.
	APIKey string `hcl:"api_key,optional"`

	// CredentialsFile is a service account JSON key used in api mode.
	CredentialsFile string `hcl:"credentials_file,optional"`

	// BaseURL overrides the download endpoint.
	BaseURL string `hcl:"base_url,optional"`
}

// SignNow contains the SignNow API credentials and OAuth parameters.
type SignNow struct {
	BaseURL        string `hcl:"base_url,optional"`
	Username       string `hcl:"username,optional"`
	Password       string `hcl:"password,optional"`
	Scope          string `hcl:"scope,optional"`
	GrantType      string `hcl:"grant_type,optional"`
	ExpirationTime string `hcl:"expiration_time,optional"`

	// BasicToken is the pre-encoded client credentials sent as
	// "Authorization: Basic <token>" to the token endpoint.
	BasicToken string `hcl:"basic_token,optional"`
}

// Invite configures the signature field and the invitation text.
type Invite struct {
	Role    string `hcl:"role,optional"`
	From    string `hcl:"from,optional"`
	Subject string `hcl:"subject,optional"`
	Message string `hcl:"message,optional"`

	Field *Field `hcl:"field,block"`
}

// Field is the placement of the signature field. X and Y are pointers so
// that an explicit zero (the page edge) is kept.
type Field struct {
	X          *int `hcl:"x,optional"`
	Y          *int `hcl:"y,optional"`
	Width      int  `hcl:"width,optional"`
	Height     int  `hcl:"height,optional"`
	PageNumber int  `hcl:"page_number,optional"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the HCL file at path (if path is not empty), applies defaults
// and environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
			return nil, fmt.Errorf("error decoding config file %q: %w", path, err)
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes HCL source. filename is only used to pick the syntax (.hcl
// or .json) and in diagnostics.
func Parse(filename string, src []byte) (*Config, error) {
	cfg := &Config{}
	if err := hclsimple.Decode(filename, src, nil, cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":3000"
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "downloads"
	}
	if cfg.Timeout == "" {
		cfg.Timeout = "60s"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Drive == nil {
		cfg.Drive = &Drive{}
	}
	if cfg.Drive.Mode == "" {
		cfg.Drive.Mode = DriveModePublic
	}

	if cfg.SignNow == nil {
		cfg.SignNow = &SignNow{}
	}
	if cfg.SignNow.BaseURL == "" {
		cfg.SignNow.BaseURL = "https://api.signnow.com"
	}

	if cfg.Invite == nil {
		cfg.Invite = &Invite{}
	}
	if cfg.Invite.Role == "" {
		cfg.Invite.Role = "Signer 1"
	}
	if cfg.Invite.From == "" {
		cfg.Invite.From = "associacao_comercial@acsp.com.br"
	}
	if cfg.Invite.Subject == "" {
		cfg.Invite.Subject = "Favor assinar o documento"
	}
	if cfg.Invite.Message == "" {
		cfg.Invite.Message = "Olá, você foi convidado a assinar o documento."
	}

	if cfg.Invite.Field == nil {
		cfg.Invite.Field = &Field{}
	}
	f := cfg.Invite.Field
	if f.X == nil {
		x := 300
		f.X = &x
	}
	if f.Y == nil {
		y := 700
		f.Y = &y
	}
	if f.Width == 0 {
		f.Width = 100
	}
	if f.Height == 0 {
		f.Height = 25
	}
	if f.PageNumber == 0 {
		f.PageNumber = 1
	}
}

// applyEnv overrides configuration values with environment variables when
// they are set.
func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"SIGNBRIDGE_LISTEN_ADDR", &cfg.ListenAddr},
		{"SIGNBRIDGE_DOWNLOAD_DIR", &cfg.DownloadDir},
		{"SIGNBRIDGE_TIMEOUT", &cfg.Timeout},
		{"SIGNBRIDGE_LOG_LEVEL", &cfg.LogLevel},
		{"SIGNBRIDGE_DRIVE_MODE", &cfg.Drive.Mode},
		{"GOOGLE_DRIVE_API_KEY", &cfg.Drive.APIKey},
		{"GOOGLE_APPLICATION_CREDENTIALS", &cfg.Drive.CredentialsFile},
		{"SIGNNOW_BASE_URL", &cfg.SignNow.BaseURL},
		{"SIGNNOW_USERNAME", &cfg.SignNow.Username},
		{"SIGNNOW_PASSWORD", &cfg.SignNow.Password},
		{"SIGNNOW_SCOPE", &cfg.SignNow.Scope},
		{"SIGNNOW_GRANT_TYPE", &cfg.SignNow.GrantType},
		{"SIGNNOW_EXPIRATION_TIME", &cfg.SignNow.ExpirationTime},
		{"SIGNNOW_BASIC_TOKEN", &cfg.SignNow.BasicToken},
	}

	for _, o := range overrides {
		if val, ok := os.LookupEnv(o.env); ok && val != "" {
			*o.dst = val
		}
	}
}

// Validate checks structural settings. SignNow credentials are
// not required; a missing credential surfaces when authentication fails.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := c.HTTPTimeout(); err != nil {
		result = multierror.Append(result, err)
	}

	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result,
			fmt.Errorf("log_level %q is not a valid level", c.LogLevel))
	}

	switch c.Drive.Mode {
	case DriveModePublic:
	case DriveModeAPI:
		if c.Drive.APIKey != "" && c.Drive.CredentialsFile != "" {
			result = multierror.Append(result,
				fmt.Errorf("drive: api_key and credentials_file are mutually exclusive"))
		}
	default:
		result = multierror.Append(result,
			fmt.Errorf("drive: mode must be %q or %q, got: %q",
				DriveModePublic, DriveModeAPI, c.Drive.Mode))
	}
	if c.Drive.BaseURL != "" {
		if err := validateURL(c.Drive.BaseURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("drive: base_url: %w", err))
		}
	}

	if err := validateURL(c.SignNow.BaseURL); err != nil {
		result = multierror.Append(result, fmt.Errorf("signnow: base_url: %w", err))
	}

	f := c.Invite.Field
	if x, y := f.Position(); x < 0 || y < 0 {
		result = multierror.Append(result,
			fmt.Errorf("invite: field position must be non-negative, got: (%d, %d)", x, y))
	}
	if f.Width <= 0 || f.Height <= 0 {
		result = multierror.Append(result,
			fmt.Errorf("invite: field size must be positive, got: %dx%d", f.Width, f.Height))
	}
	if f.PageNumber < 1 {
		result = multierror.Append(result,
			fmt.Errorf("invite: field page_number must be at least 1, got: %d", f.PageNumber))
	}

	return result.ErrorOrNil()
}

// Position returns the field coordinates, treating unset values as zero.
func (f *Field) Position() (x, y int) {
	if f.X != nil {
		x = *f.X
	}
	if f.Y != nil {
		y = *f.Y
	}
	return x, y
}

// HTTPTimeout parses the configured outbound request timeout.
func (c *Config) HTTPTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must be non-negative, got: %v", d)
	}
	return d, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https scheme, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
