package webapp

import (
	"context"
	"embed"
	"io/fs"
	"net/http"

	"github.com/andrebq/secrets/auth/api"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/julienschmidt/httprouter"
)

var (
	//go:embed static
	staticFiles embed.FS
)

// AsHandler returns the complete web application. Every request goes
// through the session restore step before reaching the routes.
func AsHandler(ctx context.Context, realm *api.Realm) (http.Handler, error) {
	views, err := loadViews()
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, err
	}
	a := &app{realm: realm, views: views}

	router := httprouter.New()
	router.HandlerFunc("GET", "/", a.home)
	router.HandlerFunc("GET", "/login", a.loginForm)
	router.HandlerFunc("POST", "/login", a.login)
	router.HandlerFunc("GET", "/register", a.registerForm)
	router.HandlerFunc("POST", "/register", a.register)
	router.HandlerFunc("GET", "/secrets", a.secrets)
	router.HandlerFunc("GET", "/logout", a.logout)
	router.HandlerFunc("GET", "/auth/google", a.googleBegin)
	router.HandlerFunc("GET", "/auth/google/secrets", a.googleCallback)
	router.Handler("GET", "/submit", realm.Protect(http.HandlerFunc(a.submitForm)))
	router.Handler("POST", "/submit", realm.Protect(http.HandlerFunc(a.submit)))
	router.HandlerFunc("GET", "/healthz", a.healthz)
	router.ServeFiles("/static/*filepath", http.FS(static))

	return logutil.Middleware(logutil.GetOrDefault(ctx), realm.Identify(router)), nil
}
