package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/services/notifications"
	"github.com/BearBump/MarketShip/internal/services/trackings"
	"github.com/BearBump/MarketShip/internal/storage"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string        `json:"error"`
	Details []fieldDetail `json:"details,omitempty"`
}

type fieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errBadRequest{msg: "malformed JSON body: " + err.Error()}
	}
	return s.validate.Struct(dst)
}

type errBadRequest struct{ msg string }

func (e errBadRequest) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError is the single place where service errors become HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs  validator.ValidationErrors
		bad    errBadRequest
		cfgErr *notifications.ConfigurationError
	)
	switch {
	case errors.As(err, &verrs):
		resp := errorResponse{Error: "request validation failed"}
		for _, fe := range verrs {
			resp.Details = append(resp.Details, fieldDetail{Field: fe.Field(), Message: validationMessage(fe)})
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.As(err, &bad):
		writeErrorMessage(w, http.StatusBadRequest, bad.msg)
	case errors.As(err, &cfgErr):
		writeErrorMessage(w, http.StatusUnprocessableEntity, cfgErr.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, trackings.ErrForbidden):
		writeErrorMessage(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, trackings.ErrInvalidState):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, trackings.ErrUnsupportedCarrier),
		errors.Is(err, trackings.ErrInvalidEvent),
		errors.Is(err, notifications.ErrInvalidInput):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	default:
		logger.Get().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "min":
		return "Must be at least " + fe.Param()
	case "max":
		return "Must be at most " + fe.Param()
	default:
		return "Invalid value"
	}
}
