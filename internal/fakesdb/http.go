package fakesdb

import (
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

func (s *Server) routes(r *mux.Router) {
	r.Use(s.middleware)

	r.HandleFunc("/health", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	r.HandleFunc("/signin", s.handleHTTPSignIn).Methods(http.MethodPost)
	r.HandleFunc("/signup", s.handleHTTPSignUp).Methods(http.MethodPost)

	api := r.NewRoute().Subrouter()
	api.Use(s.authenticated)
	api.HandleFunc("/sql", s.handleSQL).Methods(http.MethodPost)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)
	api.HandleFunc("/key/{table}", s.handleKey).
		Methods(http.MethodGet, http.MethodPost, http.MethodDelete)
	api.HandleFunc("/key/{table}/{id}", s.handleKey).
		Methods(http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rpc" {
			next.ServeHTTP(w, r)
			return
		}
		if s.DisableHTTP {
			http.NotFound(w, r)
			return
		}

		s.mu.Lock()
		s.headers = append(s.headers, r.Header.Clone())
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			writeHTTPError(w, http.StatusForbidden, "Authentication failed", "There was a problem with authentication")
			return
		}
		if r.Header.Get("NS") == "" || r.Header.Get("DB") == "" {
			writeHTTPError(w, http.StatusBadRequest, "Request problems detected", "Specify a namespace and database to use")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(r *http.Request) bool {
	authorization := r.Header.Get("Authorization")
	if token, found := strings.CutPrefix(authorization, "Bearer "); found {
		return s.validToken(token)
	}
	if user, pass, found := r.BasicAuth(); found {
		return s.checkPassword(user, pass)
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeHTTPError(w http.ResponseWriter, code int, details, information string) {
	writeJSON(w, code, map[string]any{
		"code":        code,
		"details":     details,
		"description": information,
		"information": information,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	_, _ = io.WriteString(w, s.Version)
}

func (s *Server) handleHTTPSignIn(w http.ResponseWriter, r *http.Request) {
	var creds map[string]any
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeHTTPError(w, http.StatusBadRequest, "Request problems detected", err.Error())
		return
	}

	user, pass, ok := credentialsOf([]any{creds})
	if !ok || !s.checkPassword(user, pass) {
		writeHTTPError(w, http.StatusForbidden, "Authentication failed",
			"Your authentication details are invalid. Reauthenticate using valid authentication parameters.")
		return
	}

	res := map[string]any{"code": http.StatusOK, "details": "Authentication succeeded"}
	if !s.NoToken {
		res["token"] = s.TokenSignIn
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHTTPSignUp(w http.ResponseWriter, r *http.Request) {
	var creds map[string]any
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeHTTPError(w, http.StatusBadRequest, "Request problems detected", err.Error())
		return
	}

	user, pass, ok := credentialsOf([]any{creds})
	if !ok {
		writeHTTPError(w, http.StatusBadRequest, "Request problems detected", "Signup requires a user")
		return
	}

	s.mu.Lock()
	s.Users[user] = pass
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"code":    http.StatusOK,
		"details": "Authentication succeeded",
		"token":   s.TokenSignUp,
	})
}

// handleSQL binds every URL query parameter as a variable. Values that
// parse as JSON are decoded, anything else stays a string.
func (s *Server) handleSQL(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeHTTPError(w, http.StatusBadRequest, "Request problems detected", err.Error())
		return
	}
	sql := string(body)

	if _, live := liveTable(sql); live {
		writeJSON(w, http.StatusOK, []Statement{{
			Status: "ERR",
			Time:   "1µs",
			Result: "Live queries are not supported over HTTP",
		}})
		return
	}

	vars := make(map[string]any)
	for k, vs := range r.URL.Query() {
		raw := vs[0]
		v, err := decodeJSON(strings.NewReader(raw))
		if err != nil {
			v = raw
		}
		vars[k] = v
	}

	writeJSON(w, http.StatusOK, s.QueryHandler(sql, vars))
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table, id := vars["table"], vars["id"]

	var data any
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		var err error
		if data, err = decodeJSON(r.Body); err != nil {
			writeHTTPError(w, http.StatusBadRequest, "Request problems detected", err.Error())
			return
		}
	}

	method := map[string]string{
		http.MethodGet:    "select",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "merge",
		http.MethodDelete: "delete",
	}[r.Method]

	recs, err := s.apply(method, table, id, data)
	if err != nil {
		writeJSON(w, http.StatusOK, []Statement{{Status: "ERR", Time: "1µs", Result: err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, []Statement{okStatement(recs)})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(s.store.dump())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeHTTPError(w, http.StatusBadRequest, "Request problems detected", err.Error())
		return
	}

	s.mu.Lock()
	s.imported = append(s.imported, body)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, []Statement{okStatement(nil)})
}
