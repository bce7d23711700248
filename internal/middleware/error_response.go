package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/revicx/blade/internal/model"
)

// ErrorResponseBody は統一エラーレスポンスのJSONボディ。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一フォーマットのエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	body := ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode error response",
			slog.String("error", err.Error()),
		)
	}
}

// WriteInternalServerError は詳細を含まない500レスポンスを書き込む。
// 内部エラーの詳細はログにのみ出力し、クライアントには渡さない。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "サーバー内部でエラーが発生しました。",
		Category: "system",
		Action:   "時間をおいて再度お試しください。",
	})
}

// StatusForError はエラーコードをHTTPステータスコードに変換する。
func StatusForError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeAuthenticationRequired, model.ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeSpaceNotFound,
		model.ErrCodeEntryNotFound,
		model.ErrCodeContentTypeNotFound,
		model.ErrCodeComponentNotFound,
		model.ErrCodeMemberNotFound,
		model.ErrCodeTokenNotFound,
		model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeConflict:
		return http.StatusConflict
	case model.ErrCodeImportFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeSpaceRequired, model.ErrCodeInvalidIdentifier, model.ErrCodeInvalidRole:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError はサービス層から返されたエラーをレスポンスに変換する。
// APIErrorはコードに応じたステータスで返し、それ以外はログに出して500にする。
func WriteServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, StatusForError(apiErr), apiErr)
		return
	}

	slog.Error("unhandled service error",
		slog.String("error", err.Error()),
	)
	WriteInternalServerError(w)
}
