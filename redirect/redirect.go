// Package redirect neutralises caller-supplied post-login destinations.
package redirect

import "strings"

// Root is returned for every candidate that is not a same-origin path.
const Root = "/"

// Sanitize returns candidate unchanged when it is a string naming a path on this
// origin, and Root otherwise. A leading "//" is a protocol-relative URL and would
// leave the origin.
func Sanitize(candidate any) string {
	s, ok := candidate.(string)
	if !ok {
		return Root
	}
	if !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") {
		return Root
	}
	return s
}

// locationEscaper encodes characters browsers rewrite or drop while resolving a
// URL: "\" becomes "/", and tab, LF and CR are removed.
var locationEscaper = strings.NewReplacer(
	`\`, "%5C",
	"\t", "%09",
	"\n", "%0A",
	"\r", "%0D",
)

// Location prepares a sanitized target for navigation, either as a Location
// header or as a script destination. Without it "/\evil.com" and "/\t/evil.com"
// would act like "//evil.com".
func Location(target string) string {
	return locationEscaper.Replace(target)
}
