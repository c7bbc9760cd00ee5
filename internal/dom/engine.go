package dom

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// DefaultPasswordSelectors is the ordered pattern list for locating a
// password input. Order is priority: the first selector producing an
// element with a non-empty value wins.
var DefaultPasswordSelectors = []string{
	`input[type="password"]`,
	`input[name*="pass"]`,
	`input[id*="pass"]`,
	`input[aria-label*="password"]`,
	`input[placeholder*="password"]`,
}

// DefaultUsernameSelectors is the ordered pattern list for locating a
// username or email input.
var DefaultUsernameSelectors = []string{
	`input[type="text"]`,
	`input[type="email"]`,
	`input[name*="user"]`,
	`input[name*="email"]`,
	`input[aria-label*="user"]`,
	`input[aria-label*="account"]`,
}

// Field is a located credential input and its value at snapshot time.
type Field struct {
	Element *html.Node
	Value   string
}

// Fields is the result of a credential-field search. Either field may be
// nil when nothing with a non-empty value matched.
type Fields struct {
	Username *Field
	Password *Field
}

// Engine locates credential fields using ordered per-type selector lists.
// It performs pure reads over a snapshot; no state is kept between calls.
type Engine struct {
	password []cascadia.Sel
	username []cascadia.Sel
}

// NewEngine compiles the given selector lists. Empty lists fall back to
// the defaults.
func NewEngine(passwordSelectors, usernameSelectors []string) (*Engine, error) {
	if len(passwordSelectors) == 0 {
		passwordSelectors = DefaultPasswordSelectors
	}
	if len(usernameSelectors) == 0 {
		usernameSelectors = DefaultUsernameSelectors
	}

	e := &Engine{}
	var err error
	if e.password, err = compileAll(passwordSelectors); err != nil {
		return nil, fmt.Errorf("password selectors: %w", err)
	}
	if e.username, err = compileAll(usernameSelectors); err != nil {
		return nil, fmt.Errorf("username selectors: %w", err)
	}
	return e, nil
}

func compileAll(selectors []string) ([]cascadia.Sel, error) {
	compiled := make([]cascadia.Sel, 0, len(selectors))
	for _, s := range selectors {
		sel, err := cascadia.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", s, err)
		}
		compiled = append(compiled, sel)
	}
	return compiled, nil
}

// FindCredentialFields searches the snapshot for a password and a username
// field. For each type it returns the first element, in selector-list
// order, whose value is non-empty, and stops there. Two password-like
// fields (e.g. confirm-password) are not disambiguated: the first
// non-empty one by selector priority is taken.
func (e *Engine) FindCredentialFields(doc *Document) Fields {
	return Fields{
		Password: firstFilled(doc.Root, e.password),
		Username: firstFilled(doc.Root, e.username),
	}
}

func firstFilled(root *html.Node, selectors []cascadia.Sel) *Field {
	for _, sel := range selectors {
		for _, el := range QueryAll(root, sel) {
			if v := Value(el); v != "" {
				return &Field{Element: el, Value: v}
			}
		}
	}
	return nil
}
