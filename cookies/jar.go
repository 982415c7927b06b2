// Package cookies holds the request/response cookie jar and the attributes the
// gateway issues its session and CSRF cookies with.
package cookies

import "net/http"

// Jar is the transport-level cookie store seen by the gateway for one request.
type Jar interface {
	// Get returns the value of the named cookie, preferring a value written earlier
	// in the same request over the one the client sent.
	Get(name string) (string, bool)
	// Set writes a cookie to the response.
	Set(c *http.Cookie)
}

// HTTPJar is a Jar over an inbound request and its response writer.
type HTTPJar struct {
	r       *http.Request
	w       http.ResponseWriter
	written map[string]*http.Cookie
}

var _ Jar = (*HTTPJar)(nil)

func NewHTTPJar(w http.ResponseWriter, r *http.Request) *HTTPJar {
	return &HTTPJar{
		r:       r,
		w:       w,
		written: make(map[string]*http.Cookie),
	}
}

func (j *HTTPJar) Get(name string) (string, bool) {
	if c, ok := j.written[name]; ok {
		if c.MaxAge < 0 || c.Value == "" {
			return "", false
		}
		return c.Value, true
	}
	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (j *HTTPJar) Set(c *http.Cookie) {
	j.written[c.Name] = c
	http.SetCookie(j.w, c)
}
