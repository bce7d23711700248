package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/revicx/blade/internal/model"
)

// RateLimiterConfig はレート制限の設定。
type RateLimiterConfig struct {
	// GeneralRate は一般APIの秒間リクエスト数。
	GeneralRate rate.Limit
	// GeneralBurst は一般APIのバーストサイズ。
	GeneralBurst int
	// TokenMintRate はトークン発行APIの秒間リクエスト数。
	// 発行はシークレットの生成を伴うため、一般APIより厳しく制限する。
	TokenMintRate rate.Limit
	// TokenMintBurst はトークン発行APIのバーストサイズ。
	TokenMintBurst int
	// CleanupInterval は未使用リミッターの掃除間隔。
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig は既定のレート制限設定を返す。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     10,
		GeneralBurst:    20,
		TokenMintRate:   rate.Limit(0.5),
		TokenMintBurst:  3,
		CleanupInterval: 10 * time.Minute,
	}
}

// clientLimiter はクライアント単位のリミッターと最終アクセス時刻。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はクライアント単位のトークンバケット制限を提供する。
// 認証済みリクエストはユーザーID、未認証リクエストはリモートIPでキーする。
type RateLimiter struct {
	config   RateLimiterConfig
	mu       sync.Mutex
	general  map[string]*clientLimiter
	mint     map[string]*clientLimiter
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter はRateLimiterを生成し、掃除ループを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: make(map[string]*clientLimiter),
		mint:    make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop は掃除ループを停止する。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

// GeneralMiddleware は一般API向けのレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.allow(rl.general, key, rl.config.GeneralRate, rl.config.GeneralBurst) {
			writeRateLimitResponse(w, rl.config.GeneralRate)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TokenMintMiddleware はトークン発行API向けの厳しいレート制限ミドルウェアを返す。
func (rl *RateLimiter) TokenMintMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.allow(rl.mint, key, rl.config.TokenMintRate, rl.config.TokenMintBurst) {
			writeRateLimitResponse(w, rl.config.TokenMintRate)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow はキーに対応するリミッターを取得（なければ生成）し、1リクエスト分の許可を判定する。
func (rl *RateLimiter) allow(limiters map[string]*clientLimiter, key string, r rate.Limit, burst int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(r, burst)}
		limiters[key] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter.Allow()
}

// cleanupLoop はCleanupIntervalの2倍以上アクセスのないリミッターを削除し続ける。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-2 * rl.config.CleanupInterval)
	for _, limiters := range []map[string]*clientLimiter{rl.general, rl.mint} {
		for key, cl := range limiters {
			if cl.lastAccess.Before(cutoff) {
				delete(limiters, key)
			}
		}
	}
}

// clientKey はレート制限のキーを決定する。
// セッション認証済みならユーザーID、そうでなければリモートIP。
func clientKey(r *http.Request) string {
	if userID, err := UserIDFromContext(r.Context()); err == nil {
		return "user:" + userID
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// writeRateLimitResponse は429レスポンスを書き込む。
// Retry-Afterは1リクエスト分のトークンが補充されるまでの秒数（切り上げ）。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfter := 1
	if r > 0 {
		retryAfter = int(math.Ceil(1 / float64(r)))
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     "RATE_LIMITED",
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
