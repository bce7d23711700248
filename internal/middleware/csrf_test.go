package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCSRFMiddleware(t *testing.T) {
	mw := NewCSRFMiddleware(false)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("GETはCookieを配布して通過する", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/spaces", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var found bool
		for _, c := range rec.Result().Cookies() {
			if c.Name == "csrf_token" && c.Value != "" {
				found = true
				if c.HttpOnly {
					t.Error("csrf cookie must be readable by JavaScript")
				}
			}
		}
		if !found {
			t.Error("csrf cookie not issued")
		}
	})

	t.Run("POSTはCookieとヘッダーの一致が必要", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/spaces", nil)
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok-abc"})
		req.Header.Set("X-CSRF-Token", "tok-abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("ヘッダー不一致は403", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/spaces", nil)
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok-abc"})
		req.Header.Set("X-CSRF-Token", "tok-other")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("Cookieなしの変更系リクエストは403", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/spaces/space-1", nil)
		req.Header.Set("X-CSRF-Token", "tok-abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestCSRFTokenHandler(t *testing.T) {
	handler := NewCSRFTokenHandler(false)

	req := httptest.NewRequest(http.MethodGet, "/api/csrf", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var cookieValue string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "csrf_token" {
			cookieValue = c.Value
		}
	}
	if cookieValue == "" {
		t.Fatal("csrf cookie not issued")
	}
	if body := rec.Body.String(); body == "" {
		t.Error("token body is empty")
	}

	t.Run("既存Cookieがあれば再発行しない", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/csrf", nil)
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "existing"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		for _, c := range rec.Result().Cookies() {
			if c.Name == "csrf_token" {
				t.Errorf("cookie reissued: %q", c.Value)
			}
		}
	})
}
