package middleware

import "net/http"

// NewSecurityHeadersMiddleware は基本的なセキュリティヘッダーを付与する
// ミドルウェアを返す。公開サイトはエントリ由来のHTMLを描画するため、
// CSPでインラインスクリプトを禁止する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "default-src 'self'; img-src https: data:; style-src 'self' 'unsafe-inline'; script-src 'self'")
			next.ServeHTTP(w, r)
		})
	}
}
