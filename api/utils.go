package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"yeti/core"
	"yeti/util"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// maxRequestBodyBytes bounds JSON request bodies
const maxRequestBodyBytes = 1 << 20

var (
	dbConnectionPattern = regexp.MustCompile(`(?:mongodb(?:\+srv)?|redis)://[^\s"']+`)
	filePathPattern     = regexp.MustCompile(`(?:^|\s)/(?:[^/\s:*?"<>|]+/)+[^/\s:*?"<>|]+`)
	mongoErrorPattern   = regexp.MustCompile(`\((?:ServerSelectionError|MongoError)[^)]*\)`)
)

// errorResponse is the body of every non-2xx JSON response
type errorResponse struct {
	Error     string            `json:"error"`
	Details   []core.FieldError `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// sanitizeErrorMessage removes sensitive information from error messages before sending to clients
func sanitizeErrorMessage(message string) string {
	message = dbConnectionPattern.ReplaceAllString(message, "[DATABASE_CONNECTION]")
	message = filePathPattern.ReplaceAllString(message, " [FILE_PATH]")
	message = mongoErrorPattern.ReplaceAllString(message, "[DATABASE_ERROR]")
	message = util.SanitizeString(message)

	if len(message) > core.MaxErrorMessageLength {
		message = message[:core.MaxErrorMessageLength-3] + "..."
	}
	return message
}

// respondJSON writes v as a JSON response with the given status
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs the full error and sends a sanitized message to the client
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error, logger *zap.SugaredLogger) {
	requestID := GetRequestID(r.Context())
	if logger != nil {
		fields := []interface{}{"status_code", statusCode, "path", r.URL.Path, "request_id", requestID}
		if err != nil {
			fields = append(fields, "error", util.SanitizeError(err))
		}
		if statusCode >= http.StatusInternalServerError {
			logger.Errorw(message, fields...)
		} else {
			logger.Warnw(message, fields...)
		}
	}

	respondJSON(w, statusCode, errorResponse{
		Error:     sanitizeErrorMessage(message),
		RequestID: requestID,
	})
}

// writeServiceError maps service and storage errors onto HTTP statuses
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		a.logger.Warnw("Request failed validation", "path", r.URL.Path, "error", ve.Error())
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:     ve.Message,
			Details:   ve.Fields,
			RequestID: GetRequestID(r.Context()),
		})
	case errors.Is(err, core.ErrInvalidQuery):
		writeError(w, r, http.StatusBadRequest, err.Error(), err, a.logger)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Not found", err, a.logger)
	case errors.Is(err, core.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "Forbidden", err, a.logger)
	case errors.Is(err, core.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "Authentication required", err, a.logger)
	default:
		writeError(w, r, http.StatusInternalServerError, "Internal server error", err, a.logger)
	}
}

// decodeJSONBody decodes a size-limited JSON request body into dst
func (a *API) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(dst)
	if err == nil {
		return nil
	}

	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, "Request body too large", err, a.logger)
	case errors.As(err, &syntaxError):
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON syntax at byte offset %d", syntaxError.Offset), err, a.logger)
	case errors.As(err, &typeError):
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid type for field '%s'", typeError.Field), err, a.logger)
	default:
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body", err, a.logger)
	}
	return err
}

// parseObjectID converts a hex id, writing a 400 when it is malformed
func (a *API) parseObjectID(w http.ResponseWriter, r *http.Request, field, hex string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		a.writeServiceError(w, r, core.NewValidationError(field, "must be a 24 character hex object id"))
		return primitive.NilObjectID, false
	}
	return id, true
}

// pathObjectID reads the {id} route variable as an ObjectID
func (a *API) pathObjectID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	return a.parseObjectID(w, r, "id", mux.Vars(r)["id"])
}
