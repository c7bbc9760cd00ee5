package signal

import "strings"

// DefaultLoginURLTerms mark an outgoing request URL as a login call.
var DefaultLoginURLTerms = []string{"login", "auth", "signin"}

// URLClassifier decides whether a request URL looks login-related.
type URLClassifier struct {
	terms []string
}

// NewURLClassifier builds a classifier from the configured substring list,
// falling back to DefaultLoginURLTerms.
func NewURLClassifier(terms []string) *URLClassifier {
	if len(terms) == 0 {
		terms = DefaultLoginURLTerms
	}
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}
	return &URLClassifier{terms: lowered}
}

// LoginLike reports whether the URL contains any login term.
func (c *URLClassifier) LoginLike(url string) bool {
	url = strings.ToLower(url)
	for _, term := range c.terms {
		if strings.Contains(url, term) {
			return true
		}
	}
	return false
}

// Observer is the explicit network-signal hook the host environment wires
// in: it is told about every outgoing request and publishes a trigger for
// login-like ones. The request itself passes through untouched; there is
// no runtime patching of the page's fetch/XHR.
type Observer struct {
	bus        *Bus
	classifier *URLClassifier
}

// NewObserver creates a request observer publishing to bus.
func NewObserver(bus *Bus, classifier *URLClassifier) *Observer {
	return &Observer{bus: bus, classifier: classifier}
}

// ObserveRequest reports an outgoing request together with the page
// snapshot at send time.
func (o *Observer) ObserveRequest(pageURL, requestURL, snapshot string) {
	if !o.classifier.LoginLike(requestURL) {
		return
	}
	o.bus.Publish(Signal{
		Kind:       NetworkRequest,
		PageURL:    pageURL,
		RequestURL: requestURL,
		Snapshot:   snapshot,
	})
}
