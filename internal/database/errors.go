package database

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"
)

// FailureKind はデータベース接続失敗の原因カテゴリを表す。
type FailureKind int

const (
	// FailureUnknown は分類できない失敗。
	FailureUnknown FailureKind = iota
	// FailureConnectionRefused はサーバーに到達できない失敗。
	FailureConnectionRefused
	// FailureAccessDenied は認証情報が拒否された失敗。
	FailureAccessDenied
	// FailureDatabaseMissing は対象データベースが存在しない失敗。
	FailureDatabaseMissing
)

// String はログ出力用の名前を返す。
func (k FailureKind) String() string {
	switch k {
	case FailureConnectionRefused:
		return "connection_refused"
	case FailureAccessDenied:
		return "access_denied"
	case FailureDatabaseMissing:
		return "database_missing"
	default:
		return "unknown"
	}
}

// PostgreSQLのSQLSTATE
const (
	pqInvalidPassword      = pq.ErrorCode("28P01")
	pqInvalidAuthorization = pq.ErrorCode("28000")
	pqInvalidCatalogName   = pq.ErrorCode("3D000")
)

// ClassifyError は接続・スキーマ作成時のエラーを原因カテゴリに分類する。
// golang-migrateはドライバのエラーを文字列化して包む場合があるため、
// 型で判定できなければメッセージで判定する。
func ClassifyError(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqInvalidPassword, pqInvalidAuthorization:
			return FailureAccessDenied
		case pqInvalidCatalogName:
			return FailureDatabaseMissing
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailureConnectionRefused
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureConnectionRefused
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return FailureConnectionRefused
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return FailureConnectionRefused
	case strings.Contains(msg, "password authentication failed"), strings.Contains(msg, "28p01"):
		return FailureAccessDenied
	case strings.Contains(msg, "database") && strings.Contains(msg, "does not exist"), strings.Contains(msg, "3d000"):
		return FailureDatabaseMissing
	}

	return FailureUnknown
}
