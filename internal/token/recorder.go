package token

import (
	"context"
	"log/slog"
	"time"
)

// TokenToucher は最終使用日時の書き込みに必要なインターフェース。
// repository.AccessTokenRepositoryの部分集合として定義する。
type TokenToucher interface {
	TouchLastUsed(ctx context.Context, id string) error
}

// touchTimeout は1回の書き込みに許容する時間。
const touchTimeout = 5 * time.Second

// AsyncRecorder は最終使用日時の更新を専用ゴルーチンで非同期に実行する。
// Recordは決してブロックせず、バッファが満杯の場合は記録を破棄する。
// 書き込み失敗はログに残すだけで、呼び出し側には一切伝播しない。
// 「呼び出し側を失敗させられない」契約をチャネル境界で構造的に保証する。
type AsyncRecorder struct {
	toucher TokenToucher
	logger  *slog.Logger
	queue   chan string
}

// NewAsyncRecorder はAsyncRecorderを生成する。
// bufferSizeは未処理の記録を保持するキューの長さ。あふれた分は破棄される。
func NewAsyncRecorder(toucher TokenToucher, logger *slog.Logger, bufferSize int) *AsyncRecorder {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &AsyncRecorder{
		toucher: toucher,
		logger:  logger,
		queue:   make(chan string, bufferSize),
	}
}

// Record はトークンIDをキューに積む。満杯の場合は黙って破棄する。
// 欠損を許容するテレメトリであり、正確性には影響しない。
func (r *AsyncRecorder) Record(tokenID string) {
	select {
	case r.queue <- tokenID:
	default:
		// 負荷時は破棄する。
	}
}

// Start はキューを消費するワーカーループを開始する。
// コンテキストがキャンセルされるまで実行を継続する。
func (r *AsyncRecorder) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tokenID := <-r.queue:
			r.touch(ctx, tokenID)
		}
	}
}

// touch は1件の最終使用日時を更新する。失敗はログのみ。
func (r *AsyncRecorder) touch(ctx context.Context, tokenID string) {
	writeCtx, cancel := context.WithTimeout(ctx, touchTimeout)
	defer cancel()

	if err := r.toucher.TouchLastUsed(writeCtx, tokenID); err != nil {
		r.logger.Warn("トークンの最終使用日時の更新に失敗しました（無視します）",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
	}
}

// compile-time interface check
var _ UsageRecorder = (*AsyncRecorder)(nil)
