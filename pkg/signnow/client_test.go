package signnow

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler http.Handler, fs afero.Fs) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL: srv.URL,
		Credentials: Credentials{
			Username:       "bot@example.com",
			Password:       "hunter2",
			Scope:          "*",
			GrantType:      "password",
			ExpirationTime: "3600",
			BasicToken:     "Y2xpZW50OnNlY3JldA==",
		},
		HTTPClient: srv.Client(),
		Fs:         fs,
		Logger:     hclog.NewNullLogger(),
	})
	require.NoError(t, err)
	return c
}

func testToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "tok-123", TokenType: "bearer"}
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "ftp://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http or https")
}

func TestAuthenticate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/oauth2/token", r.URL.Path)
			assert.Equal(t, "Basic Y2xpZW50OnNlY3JldA==", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]string{
				"username":        "bot@example.com",
				"password":        "hunter2",
				"scope":           "*",
				"grant_type":      "password",
				"expiration_time": "3600",
			}, body)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"abc","token_type":"bearer","expires_in":3600}`))
		}), nil)

		token, err := c.Authenticate(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "abc", token.AccessToken)
		assert.Equal(t, "Bearer", token.Type())
		assert.False(t, token.Expiry.IsZero())
	})

	t.Run("ProviderErrorCarriesPayload", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","code":65536}`))
		}), nil)

		_, err := c.Authenticate(t.Context())
		require.Error(t, err)

		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "authenticate", perr.Op)
		assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
		assert.JSONEq(t, `{"error":"invalid_grant","code":65536}`, string(perr.Payload))

		payload, ok := PayloadOf(err)
		require.True(t, ok)
		assert.JSONEq(t, `{"error":"invalid_grant","code":65536}`, string(payload))
	})

	t.Run("MissingAccessToken", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}), nil)

		_, err := c.Authenticate(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access token")

		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "authenticate", perr.Op)
		assert.JSONEq(t, `{}`, string(perr.Payload))
	})
}

func TestUploadDocument(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tmp/run/contract.pdf", []byte("%PDF-1.4 test"), 0o644))

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/document", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "contract.pdf", header.Filename)

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 test", string(data))

		w.Write([]byte(`{"id":"doc-1"}`))
	}), fs)

	id, err := c.UploadDocument(t.Context(), testToken(), "/tmp/run/contract.pdf")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)

	// The upload leaves the local file in place.
	exists, err := afero.Exists(fs, "/tmp/run/contract.pdf")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUploadDocument_MissingFile(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}), afero.NewMemMapFs())

	_, err := c.UploadDocument(t.Context(), testToken(), "/nope.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error opening upload file")

	var ferr *FileError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "/nope.pdf", ferr.Path)
}

// unreadableFs opens files whose reads always fail.
type unreadableFs struct {
	afero.Fs
}

func (fs unreadableFs) Open(name string) (afero.File, error) {
	f, err := fs.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	return unreadableFile{File: f}, nil
}

type unreadableFile struct {
	afero.File
}

func (unreadableFile) Read([]byte) (int, error) {
	return 0, errors.New("input/output error")
}

func TestUploadDocument_ReadFailure(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/a.pdf", []byte("data"), 0o644))

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"id":"doc-1"}`))
	}), unreadableFs{Fs: mem})

	_, err := c.UploadDocument(t.Context(), testToken(), "/a.pdf")
	require.Error(t, err)

	var ferr *FileError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "reading", ferr.Op)
	assert.Equal(t, "/a.pdf", ferr.Path)

	var terr *TransportError
	assert.False(t, errors.As(err, &terr), "read failures are not transport errors")
}

func TestUploadDocument_MissingID(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.pdf", []byte("data"), 0o644))

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"status":"queued"}`))
	}), fs)

	_, err := c.UploadDocument(t.Context(), testToken(), "/a.pdf")
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "upload", perr.Op)
	assert.JSONEq(t, `{"status":"queued"}`, string(perr.Payload))
}

func TestUploadDocument_ProviderError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.pdf", []byte("data"), 0o644))

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("unauthorized"))
	}), fs)

	_, err := c.UploadDocument(t.Context(), testToken(), "/a.pdf")
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "upload", perr.Op)
	// Non-JSON bodies are kept as a JSON string.
	assert.Equal(t, `"unauthorized"`, string(perr.Payload))
}

func TestAddSignatureField(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/document/doc-1", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"fields":[{
			"type":"signature","required":true,"role":"Signer 1",
			"x":300,"y":700,"width":100,"height":25,"page_number":1
		}]}`, string(body))

		w.Write([]byte(`{"id":"doc-1"}`))
	}), nil)

	field := SignatureField("Signer 1", 300, 700, 100, 25, 1)
	meta, err := c.AddSignatureField(t.Context(), testToken(), "doc-1", field)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"doc-1"}`, string(meta))
}

func TestGetDocument(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/document/doc-1", r.URL.Path)
		w.Write([]byte(`{
			"id":"doc-1",
			"document_name":"contract",
			"roles":[{"unique_id":"r1","name":"Signer 1","signing_order":"1"}]
		}`))
	}), nil)

	doc, err := c.GetDocument(t.Context(), testToken(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "contract", doc.DocumentName)
	require.Len(t, doc.Roles, 1)
	assert.Equal(t, Role{UniqueID: "r1", Name: "Signer 1", SigningOrder: "1"}, doc.Roles[0])
	assert.NotEmpty(t, doc.Raw)
}

func TestSendInvite(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/document/doc-1/invite", r.URL.Path)

		var inv Invite
		require.NoError(t, json.NewDecoder(r.Body).Decode(&inv))
		assert.Equal(t, "doc-1", inv.DocumentID)
		assert.Equal(t, "sender@example.com", inv.From)
		require.Len(t, inv.To, 1)
		assert.Equal(t, Recipient{
			Email:                "a@b.com",
			RoleID:               "r1",
			Role:                 "Signer 1",
			Order:                1,
			PrefillSignatureName: "Alice",
			Subject:              "Please sign",
			Message:              "Hello",
		}, inv.To[0])

		w.Write([]byte(`{"status":"success"}`))
	}), nil)

	resp, err := c.SendInvite(t.Context(), testToken(), "doc-1", Invite{
		From: "sender@example.com",
		To: []Recipient{{
			Email:                "a@b.com",
			RoleID:               "r1",
			Role:                 "Signer 1",
			Order:                1,
			PrefillSignatureName: "Alice",
			Subject:              "Please sign",
			Message:              "Hello",
		}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success"}`, string(resp))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url})
	require.NoError(t, err)

	_, err = c.Authenticate(t.Context())
	require.Error(t, err)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "authenticate", terr.Op)

	_, ok := PayloadOf(err)
	assert.False(t, ok)
}
