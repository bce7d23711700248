// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, space, content, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	ErrCodeInvalidToken           = "INVALID_TOKEN"
	ErrCodeSpaceNotFound          = "SPACE_NOT_FOUND"
	ErrCodeSpaceRequired          = "SPACE_REQUIRED"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeConflict               = "CONFLICT"
	ErrCodeInvalidIdentifier      = "INVALID_IDENTIFIER"
	ErrCodeInvalidRole            = "INVALID_ROLE"
	ErrCodeEntryNotFound          = "ENTRY_NOT_FOUND"
	ErrCodeContentTypeNotFound    = "CONTENT_TYPE_NOT_FOUND"
	ErrCodeComponentNotFound      = "COMPONENT_NOT_FOUND"
	ErrCodeMemberNotFound         = "MEMBER_NOT_FOUND"
	ErrCodeTokenNotFound          = "TOKEN_NOT_FOUND"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
	ErrCodeImportFailed           = "IMPORT_FAILED"
)

// NewAuthenticationRequiredError は未認証エラーを生成する。
// 全ての変更系エンドポイントはセッション必須であり、トークンでは代替できない。
func NewAuthenticationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationRequired,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "管理画面にサインインしてから操作してください。",
	}
}

// NewInvalidTokenError は無効なBearerトークンエラーを生成する。
// 失効済みトークンと存在しないトークンは区別されず、同一のエラーになる。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "アクセストークンが無効か、失効しています。",
		Category: "auth",
		Action:   "管理画面で新しいトークンを発行してください。",
	}
}

// NewSpaceNotFoundError はスペース未検出エラーを生成する。
func NewSpaceNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSpaceNotFound,
		Message:  "指定されたスペースが見つかりません。",
		Category: "space",
		Action:   "スペースIDを確認するか、管理画面でスペースを作成してください。",
	}
}

// NewSpaceRequiredError はスペース指定漏れエラーを生成する。
// 未スコープトークンかつセッションなしの場合、フォールバック先が存在しない。
func NewSpaceRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSpaceRequired,
		Message:  "スペースが指定されていません。",
		Category: "validation",
		Action:   "spaceパラメータで対象スペースのIDを明示的に指定してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このスペースに対する権限がありません。",
		Category: "auth",
		Action:   "スペースの所有者にメンバーとして追加を依頼してください。",
	}
}

// NewConflictError は一意制約違反エラーを生成する。
// ストレージ層の一意制約違反はこのエラーに変換され、生のDBエラーは伝播しない。
func NewConflictError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("すでに存在します: %s", detail),
		Category: "validation",
		Action:   "別の識別子または名前を指定してください。",
	}
}

// NewInvalidIdentifierError は識別子の正規化結果が空の場合のエラーを生成する。
func NewInvalidIdentifierError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIdentifier,
		Message:  "識別子には英小文字、数字、ハイフン、アンダースコアを1文字以上含めてください。",
		Category: "validation",
		Action:   "識別子を修正して再度お試しください。",
	}
}

// NewInvalidRoleError は定義外のメンバーロールが指定された場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("不正なロールです: %s", role),
		Category: "validation",
		Action:   "editorまたはviewerを指定してください。",
	}
}

// NewEntryNotFoundError はエントリ未検出エラーを生成する。
func NewEntryNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定されたエントリが見つかりません: %s", slug),
		Category: "content",
		Action:   "スラッグを確認してください。",
	}
}

// NewContentTypeNotFoundError はコンテンツタイプ未検出エラーを生成する。
func NewContentTypeNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeContentTypeNotFound,
		Message:  "コンテンツタイプが見つかりません。",
		Category: "content",
		Action:   "スペースにコンテンツタイプを作成してください。",
	}
}

// NewComponentNotFoundError はコンポーネント未検出エラーを生成する。
func NewComponentNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeComponentNotFound,
		Message:  "指定されたブロックが見つかりません。",
		Category: "content",
		Action:   "ブロックIDを確認してください。",
	}
}

// NewMemberNotFoundError はメンバー未検出エラーを生成する。
func NewMemberNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotFound,
		Message:  "指定されたメンバーが見つかりません。",
		Category: "space",
		Action:   "メンバー一覧を確認してください。",
	}
}

// NewTokenNotFoundError はトークン未検出エラーを生成する。
// トークン管理API用。コンテンツAPIの検証失敗はNewInvalidTokenErrorを使用する。
func NewTokenNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenNotFound,
		Message:  "指定されたトークンが見つかりません。",
		Category: "auth",
		Action:   "トークン一覧を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "そのメールアドレスのアカウントが見つかりません。",
		Category: "auth",
		Action:   "対象ユーザーに一度サインインしてアカウントを作成してもらってください。",
	}
}

// NewImportFailedError はフィード取り込み失敗エラーを生成する。
func NewImportFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportFailed,
		Message:  fmt.Sprintf("フィードの取り込みに失敗しました: %s", reason),
		Category: "content",
		Action:   "フィードURLが正しいか確認してください。",
	}
}
