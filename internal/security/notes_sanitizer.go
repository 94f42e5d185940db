// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NotesSanitizer は整備記録のメモ欄を画面に表示する際に、
// 許可リストベースのbluemondayポリシーで安全なHTMLに変換する。
// 保存値そのものは変更しない。
package security

import (
	"html/template"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NotesSanitizer はメモ欄を表示用HTMLに変換する機能のインターフェース。
type NotesSanitizer interface {
	// Sanitize はメモをサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, a, ul, ol, li, strong, em, code）のみを通過させ、
	// それ以外のタグとon*イベント属性を除去する。
	// 改行は<br>に変換する。
	Sanitize(raw string) string

	// Render はSanitizeの結果をテンプレートにそのまま埋め込める形で返す。
	Render(raw string) template.HTML
}

// notesSanitizer はNotesSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type notesSanitizer struct {
	policy *bluemonday.Policy
}

// NewNotesSanitizer はNotesSanitizerの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, strong, em, code
//   - aのhref: httpsスキームのみ。target="_blank" と rel="noopener noreferrer" を付与
//   - 画像や埋め込み要素は許可しない
func NewNotesSanitizer() NotesSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em", "code",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &notesSanitizer{
		policy: p,
	}
}

var newlineReplacer = strings.NewReplacer("\r\n", "<br>", "\n", "<br>")

// Sanitize はメモをサニタイズして安全なHTMLを返す。
func (s *notesSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return s.policy.Sanitize(newlineReplacer.Replace(raw))
}

// Render はサニタイズ済みのHTMLをtemplate.HTMLとして返す。
func (s *notesSanitizer) Render(raw string) template.HTML {
	return template.HTML(s.Sanitize(raw))
}
