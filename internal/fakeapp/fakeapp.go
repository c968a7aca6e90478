// Package fakeapp serves an in-process imitation of the meal planning web
// application for tests.
package fakeapp

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"sync"
)

const (
	AntiForgeryToken = "af-7c1e"
	CsrfToken        = "csrf-93bd"
)

type Item struct {
	Name       string `json:"name"`
	CategoryId string `json:"category_id"`
	Quantity   string `json:"quantity"`
	Checked    string `json:"checked"`
}

type Server struct {
	*httptest.Server

	Email    string
	Password string

	// OmitAntiForgery drops the hidden input from the login page.
	OmitAntiForgery bool
	// OmitCsrf drops the csrf meta tag from authenticated pages.
	OmitCsrf bool
	// Reject maps an item name to the status its submission is answered with.
	Reject map[string]int

	mutex  sync.Mutex
	tokens map[string]bool
	hits   map[string]int
	items  []Item
}

func New(email, password string) *Server {
	s := &Server{
		Email:    email,
		Password: password,
		Reject:   map[string]int{},
		tokens:   map[string]bool{},
		hits:     map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", s.loginPage)
	mux.HandleFunc("POST /sessions", s.sessions)
	mux.HandleFunc("GET /{$}", s.root)
	mux.HandleFunc("POST /api/grocery_list_items", s.groceryListItems)
	mux.HandleFunc("GET /api/meal_plan", s.mealPlan)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		s.mutex.Unlock()
		mux.ServeHTTP(w, r)
	}))
	return s
}

// IssueToken returns an auth cookie value the server accepts.
func (s *Server) IssueToken() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	token := fmt.Sprintf("auth-%d", len(s.tokens)+1)
	s.tokens[token] = true
	return token
}

// ExpireSessions forgets every auth cookie handed out so far.
func (s *Server) ExpireSessions() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for token := range s.tokens {
		s.tokens[token] = false
	}
}

// Hits counts the requests made to "METHOD /path".
func (s *Server) Hits(route string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.hits[route]
}

func (s *Server) Items() []Item {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]Item(nil), s.items...)
}

func (s *Server) authenticated(r *http.Request) bool {
	c, err := r.Cookie("auth_token")
	if err != nil {
		return false
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.tokens[c.Value]
}

var loginTemplate = template.Must(template.New("login").Parse(`<!doctype html>
<html><body>
<form action="/sessions" method="post">
{{if .}}<input type="hidden" name="authenticity_token" value="{{.}}">{{end}}
<input type="email" name="user[email]">
<input type="password" name="user[password]">
</form>
</body></html>`))

var rootTemplate = template.Must(template.New("root").Parse(`<!doctype html>
<html><head>
{{if .}}<meta name="csrf-token" content="{{.}}">{{end}}
</head><body>Meal plan</body></html>`))

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "_mealplanner_session", Value: "anonymous", Path: "/", HttpOnly: true})
	token := AntiForgeryToken
	if s.OmitAntiForgery {
		token = ""
	}
	loginTemplate.Execute(w, token)
}

// sessions answers valid logins with a 404, the way the real site does.
func (s *Server) sessions(w http.ResponseWriter, r *http.Request) {
	err := r.ParseForm()
	if err != nil ||
		r.PostForm.Get("authenticity_token") != AntiForgeryToken ||
		r.PostForm.Get("user[email]") != s.Email ||
		r.PostForm.Get("user[password]") != s.Password {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: s.IssueToken(), Path: "/", HttpOnly: true})
	w.WriteHeader(http.StatusNotFound)
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	if !s.authenticated(r) {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	token := CsrfToken
	if s.OmitCsrf {
		token = ""
	}
	rootTemplate.Execute(w, token)
}

func (s *Server) groceryListItems(w http.ResponseWriter, r *http.Request) {
	if !s.authenticated(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.Header.Get("X-CSRF-Token") != CsrfToken {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":"invalid csrf token"}`)
		return
	}
	err := r.ParseForm()
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	item := Item{
		Name:       r.PostForm.Get("grocery_list_item[name]"),
		CategoryId: r.PostForm.Get("grocery_list_item[category_id]"),
		Quantity:   r.PostForm.Get("grocery_list_item[quantity]"),
		Checked:    r.PostForm.Get("grocery_list_item[checked]"),
	}
	if status, ok := s.Reject[item.Name]; ok {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":"cannot add %s"}`, item.Name)
		return
	}

	s.mutex.Lock()
	s.items = append(s.items, item)
	s.mutex.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(item)
}

func (s *Server) mealPlan(w http.ResponseWriter, r *http.Request) {
	if !s.authenticated(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"days":[{"date":"2026-10-19","meals":["tofu stir fry","lentil soup"]}]}`)
}
