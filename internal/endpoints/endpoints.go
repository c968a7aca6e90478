// Package endpoints holds the fixed routes of the target application.
package endpoints

import (
	"fmt"
	"net/url"
)

const DefaultBaseUrl = "https://www.mealplanner.app"

const (
	LoginPage        = "/login"
	Sessions         = "/sessions"
	Root             = "/"
	GroceryListItems = "/api/grocery_list_items"
	MealPlan         = "/api/meal_plan"
)

const (
	// AuthCookie is present once the session is authenticated.
	AuthCookie = "auth_token"
	// AntiForgeryField is the hidden input of the login form.
	AntiForgeryField = "authenticity_token"
	// CsrfMeta is the <meta> tag holding the CSRF token on authenticated pages.
	CsrfMeta = "csrf-token"
)

type Endpoints struct {
	base *url.URL
}

func New(baseUrl string) (Endpoints, error) {
	base, err := url.Parse(baseUrl)
	if err != nil {
		return Endpoints{}, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return Endpoints{}, fmt.Errorf("base url %q must be absolute", baseUrl)
	}
	return Endpoints{base: base}, nil
}

// Url resolves a route against the base url.
func (e Endpoints) Url(route string) *url.URL {
	return e.base.ResolveReference(&url.URL{Path: route})
}

func (e Endpoints) Host() string {
	return e.base.Hostname()
}

func (e Endpoints) Origin() string {
	return e.base.Scheme + "://" + e.base.Host
}
