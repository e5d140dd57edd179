package llm

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ProxyEnvVar overrides the standard proxy variables for model traffic only.
const ProxyEnvVar = "PODCAST_CREATOR_PROXY"

// ResolveProxy picks the proxy URL for model requests. An explicit value wins,
// and an explicit empty string disables proxying. Otherwise the first set
// variable of PODCAST_CREATOR_PROXY, HTTP_PROXY and HTTPS_PROXY is used.
func ResolveProxy(explicit *string) string {
	if explicit != nil {
		return strings.TrimSpace(*explicit)
	}
	for _, key := range []string{ProxyEnvVar, "HTTP_PROXY", "HTTPS_PROXY"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

// RedactProxy hides proxy credentials for logging.
func RedactProxy(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "<proxy configured>"
	}
	if parsed.User == nil {
		return raw
	}
	return fmt.Sprintf("%s://***:***@%s%s", parsed.Scheme, parsed.Host, parsed.Path)
}
