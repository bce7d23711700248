// Package token はコンテンツAPI用Bearerトークンの生成と検証を提供する。
// 生のシークレットは発行時に1度だけ返され、保存されるのはSHA-256ハッシュのみ。
package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/repository"
)

const (
	// SecretPrefix は全シークレットの先頭に付く固定プレフィックス。
	// ログやサポート窓口でトークンの種別を識別できるようにする。
	SecretPrefix = "blade_"

	// secretRandomBytes はシークレットの乱数部のバイト数。hexで96ビット以上の十分なエントロピー。
	secretRandomBytes = 24

	// displayPrefixLen は一覧表示用プレフィックスの文字数。
	displayPrefixLen = 12
)

// GeneratedSecret はトークン発行の結果を表す。
// Secretは呼び出し側で1度だけユーザーに表示し、以後は破棄すること。
type GeneratedSecret struct {
	Secret string // 生のシークレット（blade_ + 48桁hex）
	Hash   string // 保存・検索用のSHA-256ハッシュ（hex）
	Prefix string // 一覧表示用の先頭12文字+省略記号
}

// GenerateSecret は新しいトークンシークレットを生成する。
func GenerateSecret() (*GeneratedSecret, error) {
	b := make([]byte, secretRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}

	secret := SecretPrefix + hex.EncodeToString(b)
	return &GeneratedSecret{
		Secret: secret,
		Hash:   HashSecret(secret),
		Prefix: secret[:displayPrefixLen] + "…",
	}, nil
}

// HashSecret はシークレットの一方向ハッシュを計算する。
// プロセスをまたいで安定している必要があるため、ソルトは使用しない
// （検索はハッシュの完全一致で行う）。
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// UsageRecorder はトークンの最終使用日時を記録するインターフェース。
// 記録はベストエフォートで、呼び出し側をブロックしてはならない。
type UsageRecorder interface {
	Record(tokenID string)
}

// Scope はトークン検証の成功結果を表す。
// SpaceIDが空文字列の場合は未スコープ（呼び出し側のデフォルトスペースを使用）。
type Scope struct {
	TokenID string
	SpaceID string
}

// Validator は提示されたシークレットを検証し、トークンのスコープを返す。
type Validator struct {
	tokenRepo repository.AccessTokenRepository
	recorder  UsageRecorder
}

// NewValidator はValidatorを生成する。
// recorderはnilでもよい（最終使用日時を記録しない）。
func NewValidator(tokenRepo repository.AccessTokenRepository, recorder UsageRecorder) *Validator {
	return &Validator{
		tokenRepo: tokenRepo,
		recorder:  recorder,
	}
}

// Validate は提示されたシークレットを検証する。
// 空・プレフィックス不一致・ハッシュ不一致はいずれもINVALID_TOKENになる。
// 失効済みと最初から存在しないトークンは区別できない（どちらもハッシュ不一致）。
// 成功時は最終使用日時の更新を非同期にディスパッチする。
func (v *Validator) Validate(ctx context.Context, presented string) (*Scope, error) {
	if presented == "" || !strings.HasPrefix(presented, SecretPrefix) {
		return nil, model.NewInvalidTokenError()
	}

	record, err := v.tokenRepo.FindByHash(ctx, HashSecret(presented))
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if record == nil {
		return nil, model.NewInvalidTokenError()
	}

	// 最終使用日時はfire-and-forget。失敗してもリクエストは成功させる。
	if v.recorder != nil {
		v.recorder.Record(record.ID)
	}

	return &Scope{
		TokenID: record.ID,
		SpaceID: record.SpaceID,
	}, nil
}
