package webapp

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/userstore"
)

type (
	page struct {
		User    *userstore.User
		Message string
		Secrets []string
		Google  bool
	}
)

var (
	//go:embed templates/*.html
	templateFiles embed.FS

	pageNames = []string{"home", "login", "register", "secrets", "submit"}

	messages = map[string]string{
		"invalid":  "Invalid username or password.",
		"taken":    "That username is taken or the form is incomplete.",
		"provider": "Sign in with Google did not complete, please try again.",
	}
)

func loadViews() (map[string]*template.Template, error) {
	views := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFiles, "templates/layout.html", fmt.Sprintf("templates/%v.html", name))
		if err != nil {
			return nil, fmt.Errorf("unable to parse view %v, cause %w", name, err)
		}
		views[name] = t
	}
	return views, nil
}

func (a *app) render(w http.ResponseWriter, r *http.Request, name string, data page) {
	// rendering to memory first so a template error does not produce a half page
	var buf bytes.Buffer
	err := a.views[name].ExecuteTemplate(&buf, "layout", data)
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("view", name).Msg("Unable to render view")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
