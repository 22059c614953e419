package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/oauth2"
)

type loginResult struct {
	token *oauth2.Token
	err   error
}

// Login runs the authorization code flow against a loopback listener on
// listenAddr and saves the resulting token. openURL is asked to show the
// consent page to the user.
func Login(ctx context.Context, config *oauth2.Config, store *TokenStore, listenAddr string, openURL func(string) error) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for OAuth callback: %w", err)
	}

	cfg := *config
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/callback"
	state := uuid.NewString()
	results := make(chan loginResult, 1)

	send := func(res loginResult) {
		select {
		case results <- res:
		default:
		}
	}

	router := httprouter.New()
	router.GET("/callback", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "state did not match", http.StatusBadRequest)
			return
		}
		if reason := query.Get("error"); reason != "" {
			http.Error(w, "authorization denied: "+reason, http.StatusForbidden)
			send(loginResult{err: fmt.Errorf("authorization denied: %s", reason)})
			return
		}

		token, err := cfg.Exchange(r.Context(), query.Get("code"))
		if err != nil {
			http.Error(w, "Failed to exchange token: "+err.Error(), http.StatusInternalServerError)
			send(loginResult{err: fmt.Errorf("failed to exchange token: %w", err)})
			return
		}

		w.Write([]byte("Signed in. You can close this tab."))
		send(loginResult{token: token})
	})

	srv := &http.Server{Handler: router}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			send(loginResult{err: err})
		}
	}()
	defer srv.Shutdown(context.Background())

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	if err := openURL(authURL); err != nil {
		return nil, fmt.Errorf("failed to open consent page: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		if err := store.Save(res.token); err != nil {
			return nil, err
		}
		return res.token, nil
	}
}
