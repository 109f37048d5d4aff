// Пакет errors — единый формат ошибок HTTP API Files Manager.
// Тело ответа: {"error": "<message>"}. Все ответы с ошибками
// должны проходить через WriteError или конструкторы ниже.
package errors //nolint:revive // пакет импортируется под именем apierrors

import (
	"encoding/json"
	"net/http"
)

// Стандартные сообщения, которые видит клиент.
const (
	MsgUnauthorized = "Unauthorized"
	MsgNotFound     = "Not found"
	MsgInternal     = "Internal server error"
)

type errorBody struct {
	Error string `json:"error"`
}

// WriteError записывает ответ ошибки со статусом statusCode.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message})
}

// BadRequest — 400 с сообщением проверки входных данных.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// Unauthorized — 401.
func Unauthorized(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, MsgUnauthorized)
}

// NotFound — 404.
func NotFound(w http.ResponseWriter) {
	WriteError(w, http.StatusNotFound, MsgNotFound)
}

// Internal — 500. Детали ошибки клиенту не раскрываются.
func Internal(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, MsgInternal)
}
