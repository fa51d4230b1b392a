package payments

import (
	"net/url"
	"strings"
)

// apiSuffixes are stripped from the configured API base before building
// browser-facing return URLs. Longest first.
var apiSuffixes = []string{"/api/v1", "/api"}

// ReturnURL is where the processor sends the browser after authorization.
// The backend serves that path and bridges it to the app's deep link.
func ReturnURL(apiBase, orderID string) string {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	for _, suf := range apiSuffixes {
		if strings.HasSuffix(base, suf) {
			base = strings.TrimSuffix(base, suf)
			break
		}
	}
	return base + "/orders/" + url.PathEscape(orderID) + "/payment-success"
}

// ReturnURLBuilder binds ReturnURL to one API base.
func ReturnURLBuilder(apiBase string) func(orderID string) string {
	return func(orderID string) string { return ReturnURL(apiBase, orderID) }
}
