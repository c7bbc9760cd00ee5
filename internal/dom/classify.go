package dom

import "strings"

// DefaultLoginTerms are the substrings that mark a clickable element or a
// request URL as login-related. Deployments localize this list through
// configuration.
var DefaultLoginTerms = []string{"login", "signin", "sign in", "log in"}

// LoginLikeTarget reports whether a clicked element should be treated as a
// login trigger: its text or aria-label contains one of the terms, or it
// is a native submit control.
func LoginLikeTarget(text, ariaLabel, inputType string, terms []string) bool {
	if strings.EqualFold(inputType, "submit") {
		return true
	}
	if len(terms) == 0 {
		terms = DefaultLoginTerms
	}
	text = strings.ToLower(text)
	ariaLabel = strings.ToLower(ariaLabel)
	for _, term := range terms {
		if strings.Contains(text, term) || strings.Contains(ariaLabel, term) {
			return true
		}
	}
	return false
}

// SubmitFocusTag reports whether an Enter keypress on an element with this
// tag counts as a login trigger.
func SubmitFocusTag(tag string) bool {
	switch strings.ToLower(tag) {
	case "input", "button":
		return true
	}
	return false
}
