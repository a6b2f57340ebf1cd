package ingestion

import (
	"net/url"
	"regexp"
)

var productIDPattern = regexp.MustCompile(`/product/(\d+)`)

// ParseProductURL extracts the numeric product ID from a ".../product/<id>"
// path and the "variant" query parameter. Either may be empty.
func ParseProductURL(rawURL string) (productID string, variant string) {
	if m := productIDPattern.FindStringSubmatch(rawURL); m != nil {
		productID = m[1]
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return productID, ""
	}
	return productID, u.Query().Get("variant")
}
