package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/revicx/blade/internal/model"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
)

// NewCSRFMiddleware はダブルサブミットCookie方式のCSRF対策ミドルウェアを返す。
// 安全なメソッド（GET/HEAD/OPTIONS）はトークンCookieの配布のみ行い、
// 変更系メソッドはCookieとヘッダーの一致を要求する。
// CookieはJavaScriptから読めるようHttpOnlyにしない。
func NewCSRFMiddleware(secure bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				ensureCSRFCookie(w, r, secure)
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(csrfCookieName)
			if err != nil || cookie.Value == "" {
				writeCSRFError(w)
				return
			}
			header := r.Header.Get(csrfHeaderName)
			if header == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
				writeCSRFError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はCSRFトークンを配布するハンドラーを返す。
// SPAは最初にこのエンドポイントを叩いてCookieを受け取る。
func NewCSRFTokenHandler(secure bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ensureCSRFCookie(w, r, secure)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"csrf_token":"` + token + `"}`)); err != nil {
			slog.Error("failed to write csrf token response",
				slog.String("error", err.Error()),
			)
		}
	})
}

// ensureCSRFCookie はCSRF Cookieが無ければ新規発行し、トークン値を返す。
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, secure bool) string {
	if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		slog.Error("failed to generate csrf token",
			slog.String("error", err.Error()),
		)
		return ""
	}
	token := hex.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

func writeCSRFError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
		Code:     "CSRF_TOKEN_MISMATCH",
		Message:  "CSRFトークンが一致しません。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	})
}
