package domain

import "net/url"

// CheckoutSession is the server-issued handoff to the payment flow. The
// client only ever sees the redirect target.
type CheckoutSession struct {
	URL string `json:"url"`
}

func (s *CheckoutSession) Validate() error {
	if s.URL == "" {
		return invalidf("checkout url is empty")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return invalidf("checkout url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalidf("checkout url scheme %q is not http(s)", u.Scheme)
	}
	if u.Host == "" {
		return invalidf("checkout url has no host")
	}
	return nil
}
