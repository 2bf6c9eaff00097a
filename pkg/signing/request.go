package signing

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Request asks for the Drive file FileID to be sent to Email for signature.
type Request struct {
	FileID string `json:"fileId"`
	Email  string `json:"email"`

	// FileName is the local file name without extension. Defaults to FileID.
	FileName string `json:"nomeArquivo"`

	// SignerName prefills the signature name shown to the recipient.
	SignerName string `json:"nome"`
}

// Validate checks that the fields required to start a run are present.
func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FileID, validation.Required),
		validation.Field(&r.Email, validation.Required),
	)
}

// localName is the file name the download is stored under.
func (r Request) localName() string {
	name := r.FileName
	if name == "" {
		name = r.FileID
	}
	return name + ".pdf"
}
