package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/logger"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal("internal error", err)
	}

	status := ae.HTTPStatus()
	msg := ae.Message
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		if ae.Kind == apperr.KindInternal {
			msg = "internal error"
		}
	}

	writeJSON(w, status, map[string]any{
		"error": errorBody{Code: ae.Kind.String(), Message: msg, Details: ae.Details},
	})
}

// decode reads a JSON body into dst and validates its struct tags.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := decodeOnly(r, dst); err != nil {
		return err
	}
	return h.check(dst)
}

func decodeOnly(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("malformed JSON body")
	}
	return nil
}

func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}

	fields := make(map[string]string, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		fields[name] = fe.Tag()
		names = append(names, name)
	}
	return apperr.Validation(fmt.Sprintf("invalid fields: %s", strings.Join(names, ", "))).WithDetails(fields)
}
