package signnow

import "encoding/json"

// Credentials are the OAuth parameters for the password grant.
type Credentials struct {
	Username       string
	Password       string
	Scope          string
	GrantType      string
	ExpirationTime string

	// BasicToken is the pre-encoded "client_id:client_secret" value.
	BasicToken string
}

// tokenRequest is the JSON body sent to the token endpoint.
type tokenRequest struct {
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
	Scope          string `json:"scope,omitempty"`
	GrantType      string `json:"grant_type,omitempty"`
	ExpirationTime string `json:"expiration_time,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Field is a field placed on a document page.
type Field struct {
	Type       string `json:"type"`
	Required   bool   `json:"required"`
	Role       string `json:"role"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	PageNumber int    `json:"page_number"`
}

// SignatureField returns a required signature field bound to role.
func SignatureField(role string, x, y, width, height, page int) Field {
	return Field{
		Type:       "signature",
		Required:   true,
		Role:       role,
		X:          x,
		Y:          y,
		Width:      width,
		Height:     height,
		PageNumber: page,
	}
}

type fieldsRequest struct {
	Fields []Field `json:"fields"`
}

// Role is a signer slot on a document.
type Role struct {
	UniqueID     string `json:"unique_id"`
	Name         string `json:"name"`
	SigningOrder string `json:"signing_order"`
}

// Document is the subset of document metadata signbridge reads.
type Document struct {
	ID           string `json:"id"`
	DocumentName string `json:"document_name"`
	Roles        []Role `json:"roles"`

	// Raw is the full response body.
	Raw json.RawMessage `json:"-"`
}

// Recipient is one entry of an invite's "to" list.
type Recipient struct {
	Email                string `json:"email"`
	RoleID               string `json:"role_id"`
	Role                 string `json:"role"`
	Order                int    `json:"order"`
	PrefillSignatureName string `json:"prefill_signature_name,omitempty"`
	Subject              string `json:"subject,omitempty"`
	Message              string `json:"message,omitempty"`
}

// Invite is a field invite request.
type Invite struct {
	DocumentID string      `json:"document_id"`
	From       string      `json:"from"`
	To         []Recipient `json:"to"`
}

type uploadResponse struct {
	ID string `json:"id"`
}
