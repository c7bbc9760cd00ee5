// Package signal models the login-trigger channels as a fan-in bus. Five
// independent, deliberately imprecise listeners (form submit, login-like
// click, Enter key, network request, password blur) all publish here; a
// single consumer drains the bus. Redundant triggers for the same page
// state are de-duplicated by content hash within a debounce window.
package signal

import "time"

// Kind identifies the listener channel a signal came from.
type Kind string

const (
	FormSubmit     Kind = "form_submit"
	LoginClick     Kind = "login_click"
	EnterKey       Kind = "enter_key"
	NetworkRequest Kind = "network_request"
	FieldBlur      Kind = "field_blur"
)

// Signal is one login-attempt trigger. Snapshot is the serialized DOM at
// trigger time; RequestURL is set for network signals only.
type Signal struct {
	Kind       Kind
	PageURL    string
	RequestURL string
	Snapshot   string
	At         time.Time
}
