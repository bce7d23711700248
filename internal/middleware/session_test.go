package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/revicx/blade/internal/model"
)

type mockSessionFinder struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.findByIDFunc(ctx, id)
}

var _ SessionFinder = (*mockSessionFinder)(nil)

func validSessionFinder(userID string) *mockSessionFinder {
	return &mockSessionFinder{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{
				ID:        id,
				UserID:    userID,
				ExpiresAt: time.Now().Add(time.Hour),
			}, nil
		},
	}
}

func TestSessionMiddleware(t *testing.T) {
	t.Run("有効なセッションでユーザーIDが注入される", func(t *testing.T) {
		mw := NewSessionMiddleware(validSessionFinder("user-1"))

		var gotUserID string
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUserID, _ = UserIDFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if gotUserID != "user-1" {
			t.Errorf("userID = %q, want user-1", gotUserID)
		}
	})

	t.Run("Cookieなしは401", func(t *testing.T) {
		mw := NewSessionMiddleware(validSessionFinder("user-1"))
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		var body ErrorResponseBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json body: %v", err)
		}
		if body.Code != model.ErrCodeAuthenticationRequired {
			t.Errorf("code = %q", body.Code)
		}
	})

	t.Run("期限切れセッションは401", func(t *testing.T) {
		finder := &mockSessionFinder{
			findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
				return nil, nil
			},
		}
		mw := NewSessionMiddleware(finder)
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: "expired"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("セッション検索エラーは500", func(t *testing.T) {
		finder := &mockSessionFinder{
			findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
				return nil, errors.New("db down")
			},
		}
		mw := NewSessionMiddleware(finder)
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})
}

func TestOptionalSessionMiddleware(t *testing.T) {
	t.Run("セッションなしでも後続に到達する", func(t *testing.T) {
		mw := NewOptionalSessionMiddleware(validSessionFinder("user-1"))

		called := false
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			if _, err := UserIDFromContext(r.Context()); err == nil {
				t.Error("userID should not be set without a session")
			}
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if !called {
			t.Error("handler not called")
		}
	})

	t.Run("セッションありならユーザーIDが注入される", func(t *testing.T) {
		mw := NewOptionalSessionMiddleware(validSessionFinder("user-2"))

		var gotUserID string
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUserID, _ = UserIDFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-2"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if gotUserID != "user-2" {
			t.Errorf("userID = %q, want user-2", gotUserID)
		}
	})
}

func TestUserIDFromContext(t *testing.T) {
	t.Run("未設定の場合はエラー", func(t *testing.T) {
		if _, err := UserIDFromContext(context.Background()); err == nil {
			t.Error("expected error for missing user ID")
		}
	})

	t.Run("ContextWithUserIDで設定した値を取得できる", func(t *testing.T) {
		ctx := ContextWithUserID(context.Background(), "user-3")
		userID, err := UserIDFromContext(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if userID != "user-3" {
			t.Errorf("userID = %q", userID)
		}
	})
}

func TestSessionCookie(t *testing.T) {
	cookie := SessionCookie("sess-1", 3600, true, "example.com")
	if cookie.Name != "session_id" || cookie.Value != "sess-1" {
		t.Errorf("cookie = %+v", cookie)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if !cookie.Secure {
		t.Error("secure flag not propagated")
	}

	expired := ExpiredSessionCookie(false, "")
	if expired.MaxAge != -1 {
		t.Errorf("expired cookie MaxAge = %d", expired.MaxAge)
	}
}
