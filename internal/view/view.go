// Package view はログイン画面とダッシュボードのHTMLを描画する。
package view

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/maintlog/internal/model"
	"github.com/hitoshi/maintlog/internal/security"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// LoginPage はログイン画面の描画データ。
type LoginPage struct {
	CSRFToken     string
	Error         string
	Email         string
	GoogleEnabled bool
}

// DashboardPage はダッシュボードの描画データ。
// CanEditがfalseの場合は閲覧専用の一覧のみを描画する。
type DashboardPage struct {
	CSRFToken string
	Session   *model.Session
	Records   []*model.MaintenanceLog
	CanEdit   bool
}

// Renderer は埋め込みテンプレートからHTMLを描画する。
type Renderer struct {
	templates *template.Template
}

// NewRenderer はテンプレートを読み込んでRendererを生成する。
// メモ欄はsanitizerを通して描画する。
func NewRenderer(sanitizer security.NotesSanitizer) (*Renderer, error) {
	funcs := template.FuncMap{
		"notes": func(notes *string) template.HTML {
			if notes == nil {
				return ""
			}
			return sanitizer.Render(*notes)
		},
		"mileage": formatMileage,
		"cost":    formatCost,
		"json": func(v any) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}

	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// RenderLogin はログイン画面を描画する。
func (r *Renderer) RenderLogin(w http.ResponseWriter, status int, page LoginPage) {
	r.render(w, status, "login", struct {
		LoginPage
		Title string
	}{page, "Sign in"})
}

// RenderDashboard はダッシュボードを描画する。
func (r *Renderer) RenderDashboard(w http.ResponseWriter, page DashboardPage) {
	r.render(w, http.StatusOK, "dashboard", struct {
		DashboardPage
		Title string
	}{page, "Dashboard"})
}

// render はテンプレートをバッファに描画してから書き込む。
// 描画途中で失敗した場合に不完全なHTMLを返さないようにする。
func (r *Renderer) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// StaticHandler は埋め込みの静的ファイル（JS, CSS）を配信するハンドラーを返す。
// /static/ 配下にマウントする。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static assets not embedded: %v", err))
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func formatMileage(mileage *int64) string {
	if mileage == nil {
		return "-"
	}
	return groupThousands(*mileage)
}

func formatCost(cost *float64) string {
	if cost == nil {
		return "-"
	}
	return "$" + strconv.FormatFloat(*cost, 'f', 2, 64)
}

// groupThousands は3桁ごとにカンマを挿入する。
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 0 {
		return "-" + groupThousands(-n)
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
