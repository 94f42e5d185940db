package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string   // エラーコード
	Message  string   // エラーメッセージ
	Category string   // カテゴリ: auth, validation, record, database, system
	Action   string   // ユーザー向け対処方法
	Fields   []string // 問題のあるフィールドや設定名（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeCSRFInvalid        = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeRecordNotFound     = "RECORD_NOT_FOUND"
	ErrCodeConfigMissing      = "CONFIG_MISSING"
	ErrCodeConnectionRefused  = "CONNECTION_REFUSED"
	ErrCodeAccessDenied       = "ACCESS_DENIED"
	ErrCodeDatabaseNotFound   = "DATABASE_NOT_FOUND"
	ErrCodeBootstrapFailed    = "BOOTSTRAP_FAILED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// 存在しないメールアドレスと誤ったパスワードを区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidIDError は不正な記録IDのエラーを生成する。
func NewInvalidIDError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("無効な記録IDです: %s", id),
		Category: "validation",
		Action:   "記録IDには正の整数を指定してください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
// fieldsには問題のあるフィールド名（JSON名）を指定する。
func NewValidationError(fields []string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("必須項目が不足しているか、値が不正です: %s", strings.Join(fields, ", ")),
		Category: "validation",
		Action:   "carMake、carModel、serviceType、serviceDate（YYYY-MM-DD）は必須です。mileageとcostは0以上で指定してください。",
		Fields:   fields,
	}
}

// NewRecordNotFoundError は整備記録未検出エラーを生成する。
func NewRecordNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeRecordNotFound,
		Message:  fmt.Sprintf("指定された整備記録が見つかりません: %d", id),
		Category: "record",
		Action:   "記録IDを確認してください。",
	}
}

// NewConfigMissingError はDB接続設定の不足エラーを生成する。
func NewConfigMissingError(missing []string) *APIError {
	return &APIError{
		Code:     ErrCodeConfigMissing,
		Message:  "必要な環境変数が設定されていません。",
		Category: "database",
		Action:   fmt.Sprintf("次の環境変数を設定してください: %s", strings.Join(missing, ", ")),
		Fields:   missing,
	}
}

// NewConnectionRefusedError はDBへ接続できない場合のエラーを生成する。
func NewConnectionRefusedError() *APIError {
	return &APIError{
		Code:     ErrCodeConnectionRefused,
		Message:  "データベースに接続できません。",
		Category: "database",
		Action:   "DB_HOSTとDB_PORTを確認してください。",
	}
}

// NewAccessDeniedError はDBの認証に失敗した場合のエラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "データベースへのアクセスが拒否されました。",
		Category: "database",
		Action:   "DB_USERとDB_PASSWORDを確認してください。",
	}
}

// NewDatabaseNotFoundError は対象データベースが存在しない場合のエラーを生成する。
func NewDatabaseNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeDatabaseNotFound,
		Message:  "データベースが存在しません。",
		Category: "database",
		Action:   "先にデータベースを作成してください。",
	}
}

// NewBootstrapFailedError は分類できない初期化失敗のエラーを生成する。
func NewBootstrapFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeBootstrapFailed,
		Message:  "データベースの初期化に失敗しました。",
		Category: "database",
		Action:   "サーバーログを確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、利用者には一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
