package resolver

import (
	"fmt"
	"strings"
)

const emptyModule = "export default {}"

// SentinelModule returns the synthetic source a loader should serve for a
// sentinel id. Production builds get an empty module; development builds
// get code that fails loudly with the name of the missing module.
func SentinelModule(id string, isProduction bool) (string, bool) {
	switch {
	case strings.HasPrefix(id, BrowserExternalID):
		if isProduction {
			return emptyModule, true
		}
		name := strings.TrimPrefix(strings.TrimPrefix(id, BrowserExternalID), ":")
		return fmt.Sprintf(`export default new Proxy({}, {
  get(_, key) {
    throw new Error(`+"`"+`Module %q has been externalized for browser compatibility. Cannot access "%s.${key}" in client code.`+"`"+`)
  }
})`, name, name), true
	case strings.HasPrefix(id, OptionalPeerDepID):
		if isProduction {
			return emptyModule, true
		}
		parts := strings.SplitN(strings.TrimPrefix(id, OptionalPeerDepID+":"), ":", 2)
		peer, parent := parts[0], ""
		if len(parts) == 2 {
			parent = parts[1]
		}
		return fmt.Sprintf("throw new Error(`Could not resolve %q imported by %q. Is it installed?`)", peer, parent), true
	default:
		return "", false
	}
}
