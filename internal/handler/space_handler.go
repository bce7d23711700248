package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/revicx/blade/internal/middleware"
	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/space"
)

// SpaceServiceInterface はスペースハンドラーが必要とするサービスインターフェース。
type SpaceServiceInterface interface {
	ListSpaces(ctx context.Context, userID string) ([]space.SpaceWithFavorite, error)
	CreateSpace(ctx context.Context, userID, name, identifier string) (*model.Space, error)
	CanAccessSpace(ctx context.Context, spaceID, userID string) (*model.Space, error)
	UpdateSpace(ctx context.Context, spaceID, userID, name, identifier string) (*model.Space, error)
	DeleteSpace(ctx context.Context, spaceID, userID string) error
	ListMembers(ctx context.Context, spaceID, userID string) ([]model.SpaceMemberWithUser, error)
	AddMember(ctx context.Context, spaceID, userID, email, role string) (*model.SpaceMemberWithUser, error)
	RemoveMember(ctx context.Context, spaceID, userID, targetUserID string) error
	Favorite(ctx context.Context, spaceID, userID string) error
	Unfavorite(ctx context.Context, spaceID, userID string) error
}

// SpaceDefaultsSeeder は新規スペースに既定のコンテンツ一式を投入するインターフェース。
type SpaceDefaultsSeeder interface {
	EnsureSpaceDefaults(ctx context.Context, spaceID string) error
}

// SpaceHandler はスペース管理のHTTPハンドラー。
type SpaceHandler struct {
	service SpaceServiceInterface
	seeder  SpaceDefaultsSeeder
}

// NewSpaceHandler はSpaceHandlerを生成する。
// seederはnilでもよい（新規スペースに既定コンテンツを投入しない）。
func NewSpaceHandler(service SpaceServiceInterface, seeder SpaceDefaultsSeeder) *SpaceHandler {
	return &SpaceHandler{
		service: service,
		seeder:  seeder,
	}
}

// spaceResponse はスペース情報のAPIレスポンス。
type spaceResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Identifier string    `json:"identifier"`
	OwnerID    string    `json:"owner_id"`
	IsFavorite bool      `json:"is_favorite,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toSpaceResponse(s *model.Space) spaceResponse {
	return spaceResponse{
		ID:         s.ID,
		Name:       s.Name,
		Identifier: s.Identifier,
		OwnerID:    s.UserID,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

// spaceRequest はスペース作成・更新リクエストのボディ。
type spaceRequest struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// ListSpaces はユーザーがアクセスできるスペース一覧を返す。
// GET /api/spaces
func (h *SpaceHandler) ListSpaces(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	spaces, err := h.service.ListSpaces(r.Context(), userID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := make([]spaceResponse, 0, len(spaces))
	for _, s := range spaces {
		item := toSpaceResponse(&s.Space)
		item.IsFavorite = s.IsFavorite
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateSpace はスペースを作成し、既定のコンテンツ一式を投入する。
// POST /api/spaces
func (h *SpaceHandler) CreateSpace(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req spaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.CreateSpace(r.Context(), userID, req.Name, req.Identifier)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	if h.seeder != nil {
		if err := h.seeder.EnsureSpaceDefaults(r.Context(), created.ID); err != nil {
			middleware.WriteServiceError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, toSpaceResponse(created))
}

// GetSpace はスペース詳細を返す。
// GET /api/spaces/{spaceID}
func (h *SpaceHandler) GetSpace(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	s, err := h.service.CanAccessSpace(r.Context(), chi.URLParam(r, "spaceID"), userID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSpaceResponse(s))
}

// UpdateSpace はスペースの名前と識別子を更新する。
// PATCH /api/spaces/{spaceID}
func (h *SpaceHandler) UpdateSpace(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req spaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.UpdateSpace(r.Context(), chi.URLParam(r, "spaceID"), userID, req.Name, req.Identifier)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSpaceResponse(updated))
}

// DeleteSpace はスペースを削除する。所有者のみ実行できる。
// DELETE /api/spaces/{spaceID}
func (h *SpaceHandler) DeleteSpace(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteSpace(r.Context(), chi.URLParam(r, "spaceID"), userID); err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// memberResponse はメンバー情報のAPIレスポンス。
type memberResponse struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
}

func toMemberResponse(m model.SpaceMemberWithUser) memberResponse {
	return memberResponse{
		UserID:    m.UserID,
		Email:     m.UserEmail,
		Name:      m.UserName,
		AvatarURL: m.UserAvatarURL,
		Role:      string(m.Role),
	}
}

// ListMembers はスペースのメンバー一覧を返す。
// GET /api/spaces/{spaceID}/members
func (h *SpaceHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(r.Context(), chi.URLParam(r, "spaceID"), userID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, toMemberResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// addMemberRequest はメンバー追加リクエストのボディ。
type addMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AddMember はメールアドレスで既存ユーザーをメンバーに追加する。
// POST /api/spaces/{spaceID}/members
func (h *SpaceHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	member, err := h.service.AddMember(r.Context(), chi.URLParam(r, "spaceID"), userID, req.Email, req.Role)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMemberResponse(*member))
}

// RemoveMember はメンバーを削除する。
// DELETE /api/spaces/{spaceID}/members/{userID}
func (h *SpaceHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	err := h.service.RemoveMember(r.Context(), chi.URLParam(r, "spaceID"), userID, chi.URLParam(r, "userID"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Favorite はスペースをお気に入りに追加する。冪等。
// PUT /api/spaces/{spaceID}/favorite
func (h *SpaceHandler) Favorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Favorite(r.Context(), chi.URLParam(r, "spaceID"), userID); err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unfavorite はスペースをお気に入りから削除する。冪等。
// DELETE /api/spaces/{spaceID}/favorite
func (h *SpaceHandler) Unfavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Unfavorite(r.Context(), chi.URLParam(r, "spaceID"), userID); err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
