package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/newsupernova0617/convert-for-you/internal/converter"
	"github.com/newsupernova0617/convert-for-you/internal/pool"
	use_case "github.com/newsupernova0617/convert-for-you/internal/use-case"
)

type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(APIError{
		Error: message,
	})
}

func writeJSONErrorCode(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(APIError{
		Error: message,
		Code:  code,
	})
}

func writeMultipartError(w http.ResponseWriter, err error) {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "too large"):
		writeJSONError(w, "uploaded file exceeds maximum allowed size", http.StatusRequestEntityTooLarge)

	case strings.Contains(msg, "content-type isn't multipart/form-data"):
		writeJSONError(w, "invalid content type, expected multipart/form-data", http.StatusBadRequest)

	default:
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeConvertError maps pipeline failures to HTTP statuses. Classified
// converter errors keep their code in the body; anything unclassified is
// flattened to a generic 500 so internal details never leak.
func writeConvertError(w http.ResponseWriter, err error) {
	var inErr *use_case.InputError
	if errors.As(err, &inErr) {
		writeJSONError(w, inErr.Msg, http.StatusBadRequest)
		return
	}

	var cerr *converter.Error
	if errors.As(err, &cerr) {
		switch cerr.Code {
		case pool.CodeTimeout:
			writeJSONErrorCode(w, cerr.Message, cerr.Code, http.StatusGatewayTimeout)
		case converter.CodeNoExportFilter, converter.CodeCapabilityUnavailable, converter.CodeHeicUnsupported:
			writeJSONErrorCode(w, cerr.Message, cerr.Code, http.StatusNotImplemented)
		default:
			writeJSONError(w, "conversion failed", http.StatusInternalServerError)
		}
		return
	}

	if errors.Is(err, use_case.ErrNotFound) {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}

	writeJSONError(w, "conversion failed", http.StatusInternalServerError)
}

func validationErrorsToMap(err error) map[string]string {
	errs := map[string]string{}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range verrs {
			field := e.Field()
			switch e.Tag() {
			case "required":
				errs[field] = "is required"
			case "min", "max":
				errs[field] = "out of allowed length"
			case "gte", "lte":
				errs[field] = "out of allowed range"
			case "oneof":
				errs[field] = "invalid value"
			default:
				errs[field] = "invalid value"
			}
		}
	} else {
		errs["error"] = err.Error()
	}
	return errs
}

func writeValidationErrors(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(validationErrorsToMap(err))
}

// Source material accepted by the upload endpoint. Detection is by
// content sniffing, never by the client-supplied extension.
var allowedMIMEs = map[string]struct{}{
	"application/pdf": {},
	"application/msword":            {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.ms-excel":      {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         {},
	"application/vnd.ms-powerpoint": {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"image/png":   {},
	"image/jpeg":  {},
	"image/webp":  {},
	"image/heic":  {},
	"image/heif":  {},
	"image/gif":   {},
	"audio/mpeg":  {},
	"audio/wav":   {},
	"audio/x-wav": {},
	"audio/ogg":   {},
	"audio/mp4":   {},
	"audio/aac":   {},
	"video/mp4":   {},
	"video/quicktime":  {},
	"video/webm":       {},
	"video/x-matroska": {},
}

func mimeAllowed(mimeType string) bool {
	base := mimeType
	if idx := strings.Index(base, ";"); idx >= 0 {
		base = base[:idx]
	}
	_, ok := allowedMIMEs[strings.TrimSpace(base)]
	return ok
}
