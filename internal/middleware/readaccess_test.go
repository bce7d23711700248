package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/revicx/blade/internal/metrics"
	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/token"
)

type mockTokenValidator struct {
	validateFunc func(ctx context.Context, presented string) (*token.Scope, error)
}

func (m *mockTokenValidator) Validate(ctx context.Context, presented string) (*token.Scope, error) {
	return m.validateFunc(ctx, presented)
}

var _ TokenValidator = (*mockTokenValidator)(nil)

type mockCollector struct {
	tokenOutcomes []string
}

func (m *mockCollector) RecordHTTPStatus(int) {}

func (m *mockCollector) RecordTokenValidation(outcome string) {
	m.tokenOutcomes = append(m.tokenOutcomes, outcome)
}

func (m *mockCollector) RecordEntryRead(string) {}

func (m *mockCollector) RecordRenderLatency(time.Duration) {}

func (m *mockCollector) RecordImportedEntries(int) {}

var _ metrics.MetricsCollector = (*mockCollector)(nil)

func scopedValidator(t *testing.T, wantSecret string, scope *token.Scope) *mockTokenValidator {
	t.Helper()
	return &mockTokenValidator{
		validateFunc: func(ctx context.Context, presented string) (*token.Scope, error) {
			if presented != wantSecret {
				t.Errorf("presented = %q, want %q", presented, wantSecret)
			}
			return scope, nil
		},
	}
}

func TestReadAccessMiddleware(t *testing.T) {
	t.Run("Bearerトークンでスコープ付きPrincipalが注入される", func(t *testing.T) {
		validator := scopedValidator(t, "blade_abc", &token.Scope{TokenID: "tok-1", SpaceID: "space-1"})
		collector := &mockCollector{}
		mw := NewReadAccessMiddleware(validator, collector)

		var got *Principal
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = PrincipalFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		req.Header.Set("Authorization", "Bearer blade_abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got == nil {
			t.Fatal("principal not injected")
		}
		if got.TokenID != "tok-1" || got.SpaceID != "space-1" || got.UserID != "" {
			t.Errorf("principal = %+v", got)
		}
		if !got.IsToken() {
			t.Error("IsToken() = false")
		}
		if len(collector.tokenOutcomes) != 1 || collector.tokenOutcomes[0] != metrics.TokenOutcomeValid {
			t.Errorf("outcomes = %v", collector.tokenOutcomes)
		}
	})

	t.Run("X-API-KeyヘッダーもBearerと同様に扱われる", func(t *testing.T) {
		validator := scopedValidator(t, "blade_key", &token.Scope{TokenID: "tok-2"})
		mw := NewReadAccessMiddleware(validator, &mockCollector{})

		var got *Principal
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = PrincipalFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		req.Header.Set("X-API-Key", "blade_key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got == nil || got.TokenID != "tok-2" {
			t.Fatalf("principal = %+v", got)
		}
		if got.SpaceID != "" {
			t.Errorf("unscoped token got SpaceID %q", got.SpaceID)
		}
	})

	t.Run("AuthorizationヘッダーがX-API-Keyより優先される", func(t *testing.T) {
		validator := scopedValidator(t, "blade_bearer", &token.Scope{TokenID: "tok-3"})
		mw := NewReadAccessMiddleware(validator, &mockCollector{})
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		req.Header.Set("Authorization", "Bearer blade_bearer")
		req.Header.Set("X-API-Key", "blade_other")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("無効なトークンはセッションにフォールバックせず401", func(t *testing.T) {
		validator := &mockTokenValidator{
			validateFunc: func(ctx context.Context, presented string) (*token.Scope, error) {
				return nil, model.NewInvalidTokenError()
			},
		}
		collector := &mockCollector{}
		mw := NewReadAccessMiddleware(validator, collector)
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		}))

		// セッションがあってもトークン検証失敗が優先される
		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), "user-1"))
		req.Header.Set("Authorization", "Bearer blade_revoked")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		var body ErrorResponseBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json body: %v", err)
		}
		if body.Code != model.ErrCodeInvalidToken {
			t.Errorf("code = %q", body.Code)
		}
		if len(collector.tokenOutcomes) != 1 || collector.tokenOutcomes[0] != metrics.TokenOutcomeInvalid {
			t.Errorf("outcomes = %v", collector.tokenOutcomes)
		}
	})

	t.Run("検証の内部エラーは500", func(t *testing.T) {
		validator := &mockTokenValidator{
			validateFunc: func(ctx context.Context, presented string) (*token.Scope, error) {
				return nil, errors.New("db down")
			},
		}
		collector := &mockCollector{}
		mw := NewReadAccessMiddleware(validator, collector)
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		req.Header.Set("Authorization", "Bearer blade_abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
		if len(collector.tokenOutcomes) != 1 || collector.tokenOutcomes[0] != metrics.TokenOutcomeError {
			t.Errorf("outcomes = %v", collector.tokenOutcomes)
		}
	})

	t.Run("トークンなしセッションありはユーザーPrincipal", func(t *testing.T) {
		validator := &mockTokenValidator{
			validateFunc: func(ctx context.Context, presented string) (*token.Scope, error) {
				t.Error("validator should not be called without a token")
				return nil, nil
			},
		}
		mw := NewReadAccessMiddleware(validator, &mockCollector{})

		var got *Principal
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = PrincipalFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), "user-1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got == nil || got.UserID != "user-1" || got.IsToken() {
			t.Errorf("principal = %+v", got)
		}
	})

	t.Run("トークンもセッションもなければ401", func(t *testing.T) {
		validator := &mockTokenValidator{
			validateFunc: func(ctx context.Context, presented string) (*token.Scope, error) {
				return nil, nil
			},
		}
		mw := NewReadAccessMiddleware(validator, &mockCollector{})
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("Bearer以外のAuthorizationスキームは無視される", func(t *testing.T) {
		validator := &mockTokenValidator{
			validateFunc: func(ctx context.Context, presented string) (*token.Scope, error) {
				t.Error("validator should not be called for non-Bearer scheme")
				return nil, nil
			},
		}
		mw := NewReadAccessMiddleware(validator, &mockCollector{})
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}
