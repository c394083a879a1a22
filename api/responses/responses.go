package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/packfinderz-shopper/pkg/errors"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
)

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

var statusByCode = map[pkgerrors.Code]int{
	pkgerrors.CodeValidation: http.StatusBadRequest,
	pkgerrors.CodeNotFound:   http.StatusNotFound,
	pkgerrors.CodeNetwork:    http.StatusBadGateway,
	pkgerrors.CodeDecode:     http.StatusBadGateway,
	pkgerrors.CodeStore:      http.StatusServiceUnavailable,
	pkgerrors.CodeInternal:   http.StatusInternalServerError,
}

// StatusFor maps an error code onto the HTTP status returned to callers.
func StatusFor(code pkgerrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := ErrorEnvelope{
		Error: APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		dump := pkgerrors.Dump(err)
		ctx = logg.WithFields(ctx, map[string]any{
			"error":             dump.TopMessage,
			"error_code":        dump.Code,
			"error_chain":       dump.Chain,
			"driver_code":       dump.DriverCode,
			"driver_message":    dump.DriverMessage,
			"driver_constraint": dump.DriverConstraint,
		})
		logg.Error(ctx, "request.error", err)
	}

	writeJSON(w, StatusFor(typed.Code()), payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
