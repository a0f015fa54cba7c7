package api

import (
	"net/http"
	"strings"
)

// NewRouter returns an http.Handler serving the API under /api/v1.
func NewRouter(handler *Handler, authRequired func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc(base+"/auth/register", methodPOST(handler.Register))
	mux.HandleFunc(base+"/auth/login", methodPOST(handler.Login))

	authed := func(h http.HandlerFunc) http.Handler {
		return authRequired(h)
	}

	mux.Handle(base+"/auth/me", authed(methodGET(handler.Me)))
	mux.Handle(base+"/referrals/stats", authed(methodGET(handler.ReferralStats)))

	mux.Handle(base+"/withdrawals", authed(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListWithdrawals(w, r)
		case http.MethodPost:
			handler.CreateWithdrawal(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}))
	mux.Handle(base+"/withdrawals/", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && strings.Count(r.URL.Path, "/") == 4 {
			handler.DecideWithdrawal(w, r)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}))

	return mux
}

func methodGET(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

func methodPOST(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}
