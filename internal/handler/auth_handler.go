package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/revicx/blade/internal/middleware"
	"github.com/revicx/blade/internal/model"
)

const oauthStateCookieName = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// GetLoginURL はOAuth認可画面のURLを返す。
	GetLoginURL(state string) string
	// HandleCallback は認可コードを交換し、セッションを作成する。
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	// Logout はセッションを破棄する。
	Logout(ctx context.Context, sessionID string) error
	// GetCurrentUser はセッションIDから現在のユーザーを取得する。
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// BaseURL はログイン完了後のリダイレクト先（管理画面のURL）。
	BaseURL string
	// SessionMaxAge はセッションCookieの有効期間（秒）。
	SessionMaxAge int
	// CookieSecure はCookieにSecure属性を付けるか。
	CookieSecure bool
	// CookieDomain はCookieのDomain属性。空の場合はホストのみ。
	CookieDomain string
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はOAuth認可画面へリダイレクトする。
// CSRF対策のstateをCookieに保存し、コールバックで照合する。
// GET /auth/github/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		middleware.WriteInternalServerError(w)
		return
	}
	state := hex.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusFound)
}

// Callback はOAuthコールバックを処理し、セッションCookieを設定する。
// GET /auth/github/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_OAUTH_STATE",
			Message:  "OAuthのstateが一致しません。",
			Category: "auth",
			Action:   "最初からサインインをやり直してください。",
		})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "認可コードがありません。",
			Category: "auth",
			Action:   "最初からサインインをやり直してください。",
		})
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	// stateは使い捨て
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, middleware.SessionCookie(session.ID, h.config.SessionMaxAge, h.config.CookieSecure, h.config.CookieDomain))

	http.Redirect(w, r, h.config.BaseURL, http.StatusFound)
}

// Logout はセッションを破棄し、Cookieを失効させる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := middleware.SessionIDFromRequest(r); sessionID != "" {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			middleware.WriteServiceError(w, err)
			return
		}
	}

	http.SetCookie(w, middleware.ExpiredSessionCookie(h.config.CookieSecure, h.config.CookieDomain))
	w.WriteHeader(http.StatusNoContent)
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role,omitempty"`
}

// Me は現在のユーザー情報を返す。
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromRequest(r)
	if sessionID == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), sessionID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		Role:      user.Role,
	})
}
