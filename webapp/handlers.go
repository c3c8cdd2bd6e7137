package webapp

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/auth/api"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/userstore"
)

type (
	app struct {
		realm *api.Realm
		views map[string]*template.Template
	}
)

func (a *app) page(r *http.Request) page {
	return page{
		User:    api.UserFromContext(r.Context()),
		Message: messages[r.URL.Query().Get("error")],
		Google:  a.realm.Broker != nil,
	}
}

func (a *app) home(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "home", a.page(r))
}

func (a *app) loginForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "login", a.page(r))
}

func (a *app) registerForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "register", a.page(r))
}

func (a *app) submitForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "submit", a.page(r))
}

func (a *app) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	u, err := a.realm.Credentials.Verify(r.Context(), r.PostForm.Get("username"), auth.PlainText(r.PostForm.Get("password")))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		http.Redirect(w, r, "/login?error=invalid", http.StatusFound)
		return
	} else if err != nil {
		a.fail(w, r, err, "Unable to verify credentials")
		return
	}
	a.establish(w, r, u)
}

func (a *app) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	form := r.PostForm
	u, err := a.realm.Credentials.Register(r.Context(), form.Get("email"), form.Get("username"), auth.PlainText(form.Get("password")))
	if errors.Is(err, auth.ErrDuplicateOrInvalid) {
		http.Redirect(w, r, "/register?error=taken", http.StatusFound)
		return
	} else if err != nil {
		a.fail(w, r, err, "Unable to register user")
		return
	}
	a.establish(w, r, u)
}

func (a *app) secrets(w http.ResponseWriter, r *http.Request) {
	users, err := a.realm.Users.FindAllWithSecret(r.Context())
	if err != nil {
		a.fail(w, r, err, "Unable to list secrets")
		return
	}
	data := a.page(r)
	data.Secrets = make([]string, 0, len(users))
	for _, u := range users {
		data.Secrets = append(data.Secrets, u.Secret)
	}
	a.render(w, r, "secrets", data)
}

func (a *app) logout(w http.ResponseWriter, r *http.Request) {
	sessions := a.realm.Sessions
	if err := sessions.Invalidate(r.Context(), w, sessions.Token(r)); err != nil {
		a.fail(w, r, err, "Unable to invalidate session")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *app) googleBegin(w http.ResponseWriter, r *http.Request) {
	if a.realm.Broker == nil {
		http.NotFound(w, r)
		return
	}
	if err := a.realm.Broker.Begin(w, r); err != nil {
		a.fail(w, r, err, "Unable to start federated login")
	}
}

func (a *app) googleCallback(w http.ResponseWriter, r *http.Request) {
	if a.realm.Broker == nil {
		http.NotFound(w, r)
		return
	}
	u, err := a.realm.Broker.Complete(w, r)
	if errors.Is(err, auth.ErrProviderExchangeFailed) {
		log := logutil.GetOrDefault(r.Context())
		log.Warn().Err(err).Msg("Federated login failed")
		http.Redirect(w, r, "/login?error=provider", http.StatusFound)
		return
	} else if err != nil {
		a.fail(w, r, err, "Unable to resolve federated user")
		return
	}
	a.establish(w, r, u)
}

func (a *app) submit(w http.ResponseWriter, r *http.Request) {
	u, err := a.realm.AuthorizeSecretSubmission(r)
	if err != nil {
		http.Redirect(w, r, api.LoginPath, http.StatusFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	secret := strings.TrimSpace(r.PostForm.Get("secret"))
	if secret == "" {
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}
	u.Secret = secret
	if err := a.realm.Users.Save(r.Context(), u); err != nil {
		a.fail(w, r, err, "Unable to save secret")
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (a *app) healthz(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := a.realm.Users.Ping(r.Context()); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Health check failed")
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// establish logs u in and sends the browser to the secrets page.
func (a *app) establish(w http.ResponseWriter, r *http.Request, u *userstore.User) {
	if _, err := a.realm.Sessions.Login(w, r, u); err != nil {
		a.fail(w, r, err, "Unable to establish session")
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (a *app) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log := logutil.GetOrDefault(r.Context())
	log.Error().Err(err).Msg(msg)
	api.WriteStoreError(w, err)
}
