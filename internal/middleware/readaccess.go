package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/revicx/blade/internal/metrics"
	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/token"
)

// apiKeyHeader はAuthorizationヘッダーを使えないクライアント向けの代替ヘッダー。
const apiKeyHeader = "X-API-Key"

// principalContextKey はリクエストコンテキストにPrincipalを格納するためのキー。
var principalContextKey = contextKey("principal")

// Principal はコンテンツAPIの読み取り主体を表す。
// トークン認証の場合はTokenIDが、セッション認証の場合はUserIDが設定される。
// SpaceIDが空でない場合、読み取りはそのスペースに固定される。
type Principal struct {
	UserID  string
	TokenID string
	SpaceID string
}

// IsToken はトークン認証された主体かどうかを返す。
func (p *Principal) IsToken() bool {
	return p.TokenID != ""
}

// TokenValidator は提示されたシークレットを検証するインターフェース。
type TokenValidator interface {
	Validate(ctx context.Context, presented string) (*token.Scope, error)
}

// NewReadAccessMiddleware はコンテンツAPIの読み取り主体を解決するミドルウェアを返す。
// Authorization: Bearer がX-API-Keyより優先される。トークンが提示された場合、
// 検証失敗は即座にINVALID_TOKENの401となり、セッションへはフォールバックしない。
// トークンが無い場合はセッション（前段のミドルウェアがコンテキストに注入済み）を使う。
// どちらも無いリクエストは401で拒否する。
func NewReadAccessMiddleware(validator TokenValidator, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := presentedSecret(r)
			if presented != "" {
				scope, err := validator.Validate(r.Context(), presented)
				if err != nil {
					var apiErr *model.APIError
					if errors.As(err, &apiErr) {
						collector.RecordTokenValidation(metrics.TokenOutcomeInvalid)
						WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
						return
					}
					collector.RecordTokenValidation(metrics.TokenOutcomeError)
					slog.Error("token validation failed",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}

				collector.RecordTokenValidation(metrics.TokenOutcomeValid)
				principal := &Principal{
					TokenID: scope.TokenID,
					SpaceID: scope.SpaceID,
				}
				ctx := context.WithValue(r.Context(), principalContextKey, principal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if userID, err := UserIDFromContext(r.Context()); err == nil {
				principal := &Principal{UserID: userID}
				ctx := context.WithValue(r.Context(), principalContextKey, principal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
		})
	}
}

// presentedSecret はリクエストからトークンシークレットを取り出す。
// Bearerスキーム以外のAuthorizationヘッダーは無視する。
func presentedSecret(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if authz != "" {
		const bearerPrefix = "Bearer "
		if strings.HasPrefix(authz, bearerPrefix) {
			return strings.TrimSpace(authz[len(bearerPrefix):])
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}

// PrincipalFromContext はリクエストコンテキストから読み取り主体を取得する。
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(*Principal)
	return principal, ok
}

// ContextWithPrincipal はコンテキストに読み取り主体を注入する。
// ミドルウェアを介さないテストで使用する。
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}
