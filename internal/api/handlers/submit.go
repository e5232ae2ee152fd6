// submit.go — обработчик POST /submit.
// Rate limit и размер тела проверены middleware; здесь — разбор JSON,
// вызов оркестратора и сериализация ответа.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/juliez8/snake-year-shedding-pond/internal/api/errors"
	"github.com/juliez8/snake-year-shedding-pond/internal/api/middleware"
	"github.com/juliez8/snake-year-shedding-pond/internal/api/openapi"
	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
	"github.com/juliez8/snake-year-shedding-pond/internal/service"
)

// Тексты ошибок разбора.
const (
	messageInvalidBody    = "Invalid request body."
	messageInvalidDrawing = "Invalid drawing data."
)

// SubmitEntry — реализация POST /submit.
func (h *APIHandler) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	var req openapi.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if middleware.IsTooLarge(err) {
			apierrors.PayloadTooLarge(w, middleware.MessageTooLarge)
			return
		}
		apierrors.ValidationError(w, messageInvalidBody)
		return
	}

	sub := service.Submission{Message: rawString(req.Message)}
	if !isAbsent(req.Drawing) {
		var drawing model.Drawing
		if err := json.Unmarshal(req.Drawing, &drawing); err != nil {
			apierrors.ValidationError(w, messageInvalidDrawing)
			return
		}
		sub.Drawing = &drawing
	}

	res, err := h.services.Submission.Submit(r.Context(), sub)
	if err != nil {
		var rej *service.RejectionError
		if errors.As(err, &rej) {
			apierrors.ValidationError(w, rej.Reason)
			return
		}
		h.logger.Error("Ошибка сохранения записи", slog.String("error", err.Error()))
		apierrors.InternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, openapi.SubmitResponse{
		Success:        true,
		Entry:          res.Entry,
		AddedToGallery: !res.Placed,
	})
}

// isAbsent — поле отсутствует или равно null.
func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// rawString возвращает строковое значение поля или nil,
// если поля нет или это не JSON-строка.
func rawString(raw json.RawMessage) *string {
	if isAbsent(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}
