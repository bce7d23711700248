package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/revicx/blade/internal/middleware"
	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/token"
)

// TokenServiceInterface はトークン管理ハンドラーが必要とするサービスインターフェース。
type TokenServiceInterface interface {
	Mint(ctx context.Context, userID, name, spaceID string) (*token.MintResult, error)
	List(ctx context.Context) ([]model.AccessTokenWithSpace, error)
	Revoke(ctx context.Context, userID, tokenID string) error
}

// TokenHandler はアクセストークン管理のHTTPハンドラー。
type TokenHandler struct {
	service TokenServiceInterface
}

// NewTokenHandler はTokenHandlerを生成する。
func NewTokenHandler(service TokenServiceInterface) *TokenHandler {
	return &TokenHandler{service: service}
}

// tokenResponse はトークン一覧のAPIレスポンス。シークレットとハッシュは含まない。
type tokenResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	TokenPrefix     string     `json:"token_prefix"`
	SpaceID         string     `json:"space_id,omitempty"`
	SpaceName       string     `json:"space_name,omitempty"`
	SpaceIdentifier string     `json:"space_identifier,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
}

// mintTokenRequest はトークン発行リクエストのボディ。
type mintTokenRequest struct {
	Name    string `json:"name"`
	SpaceID string `json:"space_id"`
}

// mintTokenResponse はトークン発行のAPIレスポンス。
// Secretはこのレスポンスでのみ返される。
type mintTokenResponse struct {
	tokenResponse
	Secret string `json:"secret"`
}

// ListTokens は全トークンの一覧を返す。
// GET /api/admin/tokens
func (h *TokenHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	tokens, err := h.service.List(r.Context())
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := make([]tokenResponse, 0, len(tokens))
	for _, t := range tokens {
		resp = append(resp, tokenResponse{
			ID:              t.ID,
			Name:            t.Name,
			TokenPrefix:     t.TokenPrefix,
			SpaceID:         t.SpaceID,
			SpaceName:       t.SpaceName,
			SpaceIdentifier: t.SpaceIdentifier,
			CreatedAt:       t.CreatedAt,
			LastUsedAt:      t.LastUsedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// MintToken は新しいトークンを発行する。
// POST /api/admin/tokens
func (h *TokenHandler) MintToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req mintTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Mint(r.Context(), userID, req.Name, req.SpaceID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, mintTokenResponse{
		tokenResponse: tokenResponse{
			ID:          result.Token.ID,
			Name:        result.Token.Name,
			TokenPrefix: result.Token.TokenPrefix,
			SpaceID:     result.Token.SpaceID,
			CreatedAt:   result.Token.CreatedAt,
		},
		Secret: result.Secret,
	})
}

// RevokeToken はトークンを失効させる。
// DELETE /api/admin/tokens/{tokenID}
func (h *TokenHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Revoke(r.Context(), userID, chi.URLParam(r, "tokenID")); err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
