// Package signnow is a minimal client for the SignNow REST API covering the
// calls needed to send a single document out for signature.
package signnow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the production SignNow API.
const DefaultBaseURL = "https://api.signnow.com"

// Config contains configuration for the SignNow client.
type Config struct {
	// BaseURL of the SignNow API. Defaults to DefaultBaseURL.
	BaseURL string

	Credentials Credentials

	// HTTPClient is used for every request. Its Transport is wrapped with the
	// bearer token for authenticated calls.
	HTTPClient *http.Client

	// Fs is the filesystem uploads are read from. Defaults to the OS.
	Fs afero.Fs

	Logger hclog.Logger
}

// Client calls the SignNow API. It holds no per-run state and is safe for
// concurrent use.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	fs         afero.Fs
	logger     hclog.Logger
}

// NewClient creates a new SignNow client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must use http or https scheme, got: %s", u.Scheme)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		creds:      cfg.Credentials,
		httpClient: cfg.HTTPClient,
		fs:         cfg.Fs,
		logger:     cfg.Logger.Named("signnow"),
	}, nil
}

// Authenticate exchanges the stored credentials for a bearer token. Tokens
// are not cached; every call hits the token endpoint.
func (c *Client) Authenticate(ctx context.Context) (*oauth2.Token, error) {
	body := tokenRequest{
		Username:       c.creds.Username,
		Password:       c.creds.Password,
		Scope:          c.creds.Scope,
		GrantType:      c.creds.GrantType,
		ExpirationTime: c.creds.ExpirationTime,
	}

	var raw json.RawMessage
	err := c.doJSON(ctx, c.httpClient, "authenticate", http.MethodPost, "/oauth2/token", body, &raw,
		func(req *http.Request) {
			req.Header.Set("Authorization", "Basic "+c.creds.BasicToken)
		})
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	if len(raw) > 0 {
		// A body that is not a token object is reported below as a missing token.
		_ = json.Unmarshal(raw, &resp)
	}
	if resp.AccessToken == "" {
		return nil, &ProviderError{
			Op:      "authenticate",
			Payload: raw,
			Reason:  "response did not include an access token",
		}
	}

	token := &oauth2.Token{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		RefreshToken: resp.RefreshToken,
	}
	if resp.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	c.logger.Debug("obtained access token", "expiry", token.Expiry)
	return token, nil
}

// UploadDocument streams the file at path to SignNow and returns the new
// document ID. The local file is not modified.
func (c *Client) UploadDocument(ctx context.Context, token *oauth2.Token, path string) (string, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		return "", &FileError{Op: "opening", Path: path, Err: err}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer f.Close()

		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, &fileReader{r: f, path: path}); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/document", pr)
	if err != nil {
		pr.Close()
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var raw json.RawMessage
	if err := c.do(c.authorized(token), "upload", req, &raw); err != nil {
		// Unblock the writer goroutine if the request never drained the body.
		pr.Close()
		return "", err
	}

	var resp uploadResponse
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &resp)
	}
	if resp.ID == "" {
		return "", &ProviderError{
			Op:      "upload",
			Payload: raw,
			Reason:  "response did not include a document id",
		}
	}

	c.logger.Debug("uploaded document", "document_id", resp.ID, "path", path)
	return resp.ID, nil
}

// AddSignatureField replaces the fields of the document with field and
// returns the updated document metadata.
func (c *Client) AddSignatureField(ctx context.Context, token *oauth2.Token, documentID string, field Field) (json.RawMessage, error) {
	var resp json.RawMessage
	err := c.doJSON(ctx, c.authorized(token), "edit fields", http.MethodPut,
		"/document/"+url.PathEscape(documentID), fieldsRequest{Fields: []Field{field}}, &resp, nil)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("added signature field", "document_id", documentID, "role", field.Role)
	return resp, nil
}

// GetDocument returns the document metadata, including its roles.
func (c *Client) GetDocument(ctx context.Context, token *oauth2.Token, documentID string) (*Document, error) {
	var raw json.RawMessage
	err := c.doJSON(ctx, c.authorized(token), "get document", http.MethodGet,
		"/document/"+url.PathEscape(documentID), nil, &raw, nil)
	if err != nil {
		return nil, err
	}

	doc := &Document{Raw: raw}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
	}

	c.logger.Debug("read document", "document_id", documentID, "roles", len(doc.Roles))
	return doc, nil
}

// SendInvite sends a field invite and returns the provider response as-is.
func (c *Client) SendInvite(ctx context.Context, token *oauth2.Token, documentID string, invite Invite) (json.RawMessage, error) {
	if invite.DocumentID == "" {
		invite.DocumentID = documentID
	}

	var resp json.RawMessage
	err := c.doJSON(ctx, c.authorized(token), "invite", http.MethodPost,
		"/document/"+url.PathEscape(documentID)+"/invite", invite, &resp, nil)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("sent invite", "document_id", documentID, "recipients", len(invite.To))
	return resp, nil
}

// authorized returns an HTTP client that attaches token to every request.
func (c *Client) authorized(token *oauth2.Token) *http.Client {
	return &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(token),
			Base:   c.httpClient.Transport,
		},
	}
}

// doJSON builds a JSON request for path and executes it.
func (c *Client) doJSON(
	ctx context.Context,
	client *http.Client,
	op, method, path string,
	body interface{},
	result interface{},
	decorate func(*http.Request),
) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if decorate != nil {
		decorate(req)
	}

	return c.do(client, op, req, result)
}

// do executes req once. Non-2xx responses become a *ProviderError carrying
// the response body.
func (c *Client) do(client *http.Client, op string, req *http.Request, result interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		var ferr *FileError
		if errors.As(err, &ferr) {
			return ferr
		}
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("provider returned error",
			"op", op,
			"status", resp.StatusCode,
		)
		return newProviderError(op, resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if raw, ok := result.(*json.RawMessage); ok {
			*raw = rawPayload(respBody)
			return nil
		}
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}

	return nil
}
