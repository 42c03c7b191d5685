package api

import (
	"encoding/json"
	"net/http"
)

// Wire error codes. Clients branch on these strings, so they are part of the
// API contract and never change meaning.
const (
	ErrCodeNoUsername    = "ERR_AUTH_NO_USERNAME"
	ErrCodeNoPassword    = "ERR_AUTH_NO_PASSWORD"
	ErrCodeNoNewPassword = "ERR_AUTH_NO_NEW_PASSWORD"
	ErrCodeWrongPassword = "ERR_AUTH_WRONG_PASSWORD"
	ErrCodeUserExists    = "ERR_AUTH_USER_EXISTS"
	ErrCodeUserNotExist  = "ERR_AUTH_USER_NOT_EXIST"
	ErrCodeSameNewPass   = "ERR_AUTH_SAME_NEW_PASS"
	ErrCodeNoAuthHeader  = "ERR_AUTH_NO_AUTH_HEADER"
	ErrCodeTokenExpired  = "ERR_AUTH_TOKEN_EXPIRED"
	ErrCodeTokenInvalid  = "ERR_AUTH_TOKEN_INVALID"

	ErrCodeContentType        = "ERR_REST_CONTENT_TYPE"
	ErrCodeMethodNotSupported = "ERR_REST_METHOD_NOT_SUPPORTED"
	ErrCodeInternal           = "ERR_REST_INTERNAL"

	ErrCodeMediaExists        = "GAL_ERR_MEDIA_EXISTS"
	ErrCodeMediaNotExist      = "GAL_ERR_MEDIA_NOT_EXIST"
	ErrCodeUnsupported        = "GAL_ERR_UNSUPPORTED"
	ErrCodeNoCaptureMeta      = "GAL_ERR_NO_CAPTURE_META"
	ErrCodeMissingQueryParams = "GAL_ERR_MISSING_QUERY_PARAMS"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeFail(w http.ResponseWriter, status int, errCode string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "err_code": errCode})
}

// WriteFail is an exported helper so middleware outside this package can emit
// the same failure envelope the handlers use.
func WriteFail(w http.ResponseWriter, status int, errCode string) {
	writeFail(w, status, errCode)
}

func writeSuccess(w http.ResponseWriter, status int, fields map[string]interface{}) {
	payload := map[string]interface{}{"success": true}
	for key, value := range fields {
		payload[key] = value
	}
	writeJSON(w, status, payload)
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeFail(w, http.StatusMethodNotAllowed, ErrCodeMethodNotSupported)
}
