// Package session carries the authenticated storefront session as an
// explicit value. Every network operation takes a Session parameter; there
// is no package-level current session to consult, so two sessions can run
// side by side without ambient state bleeding between them.
package session

import "net/http"

// CookieName is the session cookie the storefront backend issues at login.
const CookieName = "SESSION"

// Session identifies the cart owner for all backend calls.
type Session struct {
	// Username is the cart owner identity the backend expects in request
	// bodies (the cart endpoints are keyed by it).
	Username string

	// Token is the opaque session credential. The client never inspects
	// it; it is forwarded as-is on every request.
	Token string
}

// Apply attaches the session credential to an outgoing request.
func (s Session) Apply(req *http.Request) {
	if s.Token != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: s.Token})
	}
}

// Valid reports whether the session names an owner.
func (s Session) Valid() bool {
	return s.Username != ""
}
