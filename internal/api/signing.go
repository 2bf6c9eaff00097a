package api

import (
	"context"
	"net/http"

	"github.com/hashicorp-forge/signbridge/internal/server"
	"github.com/hashicorp-forge/signbridge/pkg/signing"
)

// missingFieldsMessage is returned when fileId or email is absent.
const missingFieldsMessage = "Informe fileId e email"

// NewRouter returns the HTTP handler for all signbridge routes.
func NewRouter(srv server.Server) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", HealthHandler())
	mux.Handle("/enviar-para-assinar", SendForSignatureHandler(srv))
	return mux
}

// HealthHandler reports that the process is up.
//
//	GET / - Returns the JSON string "OK"
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		respondJSON(w, http.StatusOK, "OK")
	})
}

// SendForSignatureHandler starts a signing run for the requested Drive file.
//
//	POST /enviar-para-assinar - Download, upload and invite the signer
func SendForSignatureHandler(srv server.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logArgs := []any{
			"method", r.Method,
			"path", r.URL.Path,
		}

		switch r.Method {
		case "POST":
			// Bodies that do not decode, including fields of the wrong type, get
			// the same 400 as missing fields. Only the log tells them apart.
			var req signing.Request
			if err := decodeRequest(r, &req); err != nil {
				srv.Logger.Warn("error decoding request",
					append([]any{"error", err}, logArgs...)...)
				respondJSON(w, http.StatusBadRequest, newErrorResponse(missingFieldsMessage))
				return
			}
			if err := req.Validate(); err != nil {
				srv.Logger.Warn("invalid request",
					append([]any{"error", err}, logArgs...)...)
				respondJSON(w, http.StatusBadRequest, newErrorResponse(missingFieldsMessage))
				return
			}

			// Runs are not cancelled when the client disconnects.
			ctx := context.WithoutCancel(r.Context())

			result, err := srv.Signer.Run(ctx, req)
			if err != nil {
				if signing.IsValidation(err) {
					respondJSON(w, http.StatusBadRequest, newErrorResponse(missingFieldsMessage))
					return
				}
				srv.Logger.Error("error sending document for signature",
					append([]any{
						"error", err,
						"file_id", req.FileID,
					}, logArgs...)...)
				respondJSON(w, http.StatusInternalServerError,
					errorResponse{Error: signing.Detail(err)})
				return
			}

			if err := respondJSON(w, http.StatusOK, result); err != nil {
				srv.Logger.Error("error encoding response",
					append([]any{"error", err}, logArgs...)...)
				return
			}

			srv.Logger.Info("document sent for signature",
				append([]any{
					"document_id", result.DocumentID,
					"file_id", req.FileID,
				}, logArgs...)...)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
	})
}
