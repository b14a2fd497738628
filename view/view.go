// Package view renders the server-side pages. Templates live under a
// templates/ directory and are wrapped in layout.html unless they carry
// their own doctype.
package view

import (
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sallegelias/metaverso-erp/auth"
	"github.com/sallegelias/metaverso-erp/i18n"
	"github.com/sallegelias/metaverso-erp/internal/models"
	"github.com/sallegelias/metaverso-erp/internal/money"
)

var (
	baseDir  string
	once     sync.Once
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}

	staticDir = "static"
	devMode   = os.Getenv("DEV") == "1"

	langResolver = func(r *http.Request) string { return i18n.LangFromContext(r.Context()) }
	// permission resolvers are set by the host app so templates can check access
	canResolver     func(*http.Request, string, string) bool
	isAdminResolver func(*http.Request) bool
)

// SetCanResolver sets the callback behind the "can" template func.
func SetCanResolver(f func(*http.Request, string, string) bool) {
	if f != nil {
		canResolver = f
	}
}

// SetIsAdminResolver sets the callback behind the "isAdmin" template func.
func SetIsAdminResolver(f func(*http.Request) bool) {
	if f != nil {
		isAdminResolver = f
	}
}

// SetLangResolver overrides how the request language is chosen.
func SetLangResolver(f func(*http.Request) string) {
	if f != nil {
		langResolver = f
	}
}

// SetDev disables the template cache so edits show up without a restart.
func SetDev(dev bool) { devMode = dev }

// SetStaticDir sets the directory used for asset versioning.
func SetStaticDir(dir string) {
	if dir != "" {
		staticDir = dir
	}
}

// layoutBase walks upward from a template path to find the directory that contains layout.html.
// If none is found, it returns the template's own directory.
func layoutBase(mainPath string) string {
	d := filepath.Dir(mainPath)
	for {
		lp := filepath.Join(d, "layout.html")
		if fi, err := os.Stat(lp); err == nil && !fi.IsDir() {
			return d
		}
		p := filepath.Dir(d)
		if p == d {
			return filepath.Dir(mainPath)
		}
		d = p
	}
}

func detectBase() {
	for _, c := range []string{"templates", "../templates", "../../templates"} {
		if fi, err := os.Stat(filepath.Clean(c)); err == nil && fi.IsDir() {
			baseDir = filepath.Clean(c)
			return
		}
	}
	baseDir = "templates"
}

// Funcs returns the func map shared by every page.
func Funcs(r *http.Request) template.FuncMap {
	lang := langResolver(r)
	return template.FuncMap{
		"t":    func(code string) string { return i18n.T(lang, code) },
		"lang": func() string { return lang },
		"can": func(resource, action string) bool {
			if canResolver == nil {
				return false
			}
			return canResolver(r, resource, action)
		},
		"isAdmin": func() bool {
			if isAdminResolver == nil {
				return auth.IsAdmin(r.Context())
			}
			return isAdminResolver(r)
		},
		"role":  func() string { return auth.RoleFromContext(r.Context()) },
		"money": money.Format,
		"cop":   money.COP,
		"ref": func(id uint) string {
			return (&models.Quotation{ID: id}).Reference()
		},
		"year":  func() int { return time.Now().Year() },
		"asset": versionedAsset,
		// json embeds a value in a script block.
		"json": func(v any) template.JS {
			b, err := json.Marshal(v)
			if err != nil {
				return "null"
			}
			return template.JS(b)
		},
		"join":  strings.Join,
		"lower": strings.ToLower,
		// dict creates a map from key-value pairs for passing to sub-templates.
		// Usage: {{ template "partial" (dict "Key1" val1 "Key2" val2) }}
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

// versionedAsset returns /static/<name>?v=<hash> for cache busting.
func versionedAsset(rel string) string {
	if strings.HasPrefix(rel, "http://") || strings.HasPrefix(rel, "https://") || strings.HasPrefix(rel, "//") {
		return rel
	}
	b, err := os.ReadFile(filepath.Join(staticDir, rel))
	if err != nil {
		return "/static/" + rel
	}
	h := sha1.Sum(b)
	return "/static/" + rel + "?v=" + fmt.Sprintf("%x", h[:8])
}

// SetBaseDir overrides the template base directory.
func SetBaseDir(path string) {
	if path == "" {
		return
	}
	baseDir = filepath.Clean(path)
	once = sync.Once{}
}

// ResetForTests clears caches and forces base dir detection to rerun.
func ResetForTests() {
	tplCache.Lock()
	tplCache.m = map[string]*template.Template{}
	tplCache.Unlock()
	baseDir = ""
	once = sync.Once{}
}

// Render parses and executes a single template file with shared funcs.
// name is relative to the templates directory (e.g. "dashboard.html").
// Output is buffered so a failing template never leaves a half page.
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	if baseDir == "" {
		once.Do(detectBase)
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}
	if _, exists := data["IsLoggedIn"]; !exists {
		_, loggedIn := auth.UserIDFromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
	}
	if _, exists := data["Mensaje"]; !exists {
		if m := r.URL.Query().Get("mensaje"); m != "" {
			data["Mensaje"] = m
		}
	}

	t, err := lookup(r, name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = buf.WriteTo(w)
	return err
}

// lookup returns the parsed template for name. Funcs are bound per request,
// so cached templates are cloned and rebound before use.
func lookup(r *http.Request, name string) (*template.Template, error) {
	if !devMode {
		tplCache.RLock()
		t, ok := tplCache.m[name]
		tplCache.RUnlock()
		if ok {
			c, err := t.Clone()
			if err != nil {
				return nil, err
			}
			return c.Funcs(Funcs(r)), nil
		}
	}

	mainPath := filepath.Join(baseDir, name)
	if _, err := os.Stat(mainPath); err != nil {
		found := false
		for _, c := range []string{
			filepath.Join("templates", name),
			filepath.Join("../templates", name),
			filepath.Join("../../templates", name),
		} {
			if fi, e2 := os.Stat(c); e2 == nil && !fi.IsDir() {
				mainPath = c
				found = true
				break
			}
		}
		if !found {
			return nil, err
		}
	}
	root := layoutBase(mainPath)
	layoutPath := filepath.Join(root, "layout.html")
	partials, _ := filepath.Glob(filepath.Join(root, "partials", "*.html"))

	content, err := os.ReadFile(mainPath)
	if err != nil {
		return nil, err
	}
	useLayout := !bytes.Contains(bytes.ToLower(content), []byte("<!doctype"))
	if fi, err := os.Stat(layoutPath); err != nil || fi.IsDir() {
		useLayout = false
	}

	var t *template.Template
	if useLayout {
		files := append([]string{layoutPath, mainPath}, partials...)
		t, err = template.New("layout.html").Funcs(Funcs(r)).ParseFiles(files...)
	} else {
		t, err = template.New(filepath.Base(mainPath)).Funcs(Funcs(r)).ParseFiles(mainPath)
	}
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.New("template not parsed")
	}
	if !devMode {
		tplCache.Lock()
		tplCache.m[name] = t
		tplCache.Unlock()
		return t.Clone()
	}
	return t, nil
}
