// Пакет handlers — HTTP-обработчики Files Manager.
// Обработчики разбирают запрос, вызывают сервис и отображают
// ошибки сервисного слоя в HTTP-ответы через apierrors.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/paolo-abarca/holbertonschool-files-manager/internal/api/errors"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/service"
)

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError отображает ошибку сервиса в HTTP-ответ.
// Неизвестные ошибки логируются и скрываются за 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		apierrors.BadRequest(w, verr.Message)
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrParentNotFound),
		errors.Is(err, service.ErrParentNotFolder),
		errors.Is(err, service.ErrFolderContent):
		apierrors.BadRequest(w, rootMessage(err))
	case errors.Is(err, service.ErrUnauthorized):
		apierrors.Unauthorized(w)
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w)
	default:
		logger.Error("Ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.Internal(w)
	}
}

// rootMessage возвращает сообщение sentinel-ошибки сервиса без обёрток.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		service.ErrConflict,
		service.ErrParentNotFound,
		service.ErrParentNotFolder,
		service.ErrFolderContent,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// decodeBody читает JSON-тело в dst. Пустое или некорректное тело
// оставляет dst нулевым: проверка обязательных полей выдаст первое
// отсутствующее поле. Превышение лимита размера возвращает ошибку.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	// Частично разобранное тело сбрасывается целиком
	if z, ok := dst.(interface{ reset() }); ok {
		z.reset()
	}
	return nil
}

// writeDecodeError отвечает на ошибку чтения тела.
func writeDecodeError(w http.ResponseWriter) {
	apierrors.WriteError(w, http.StatusRequestEntityTooLarge, "Request entity too large")
}
