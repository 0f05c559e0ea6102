package resolver

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// BrowserExternalID marks a module externalized for browser builds. In
	// development it is suffixed with ":" and the original specifier.
	BrowserExternalID = "__browser-external"
	// OptionalPeerDepID marks a missing optional peer dependency as
	// "__optional-peer-dep:<peer>:<parent>".
	OptionalPeerDepID = "__optional-peer-dep"
)

// SideEffects is the tree-shaking policy attached to a resolved module.
type SideEffects string

const (
	SideEffectsUnknown     SideEffects = ""
	SideEffectsFalse       SideEffects = "false"
	SideEffectsTrue        SideEffects = "true"
	SideEffectsNoTreeshake SideEffects = "no-treeshake"
)

func (s SideEffects) MarshalJSON() ([]byte, error) {
	switch s {
	case SideEffectsUnknown:
		return []byte("null"), nil
	case SideEffectsFalse:
		return []byte("false"), nil
	case SideEffectsTrue:
		return []byte("true"), nil
	default:
		return json.Marshal(string(s))
	}
}

// Result is a successful resolution. A nil *Result with a nil error means the
// specifier is not handled here and the caller should try other strategies.
type Result struct {
	ID                string      `json:"id"`
	External          bool        `json:"external,omitempty"`
	ModuleSideEffects SideEffects `json:"moduleSideEffects,omitempty"`
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	copied := *r
	return &copied
}

// IsSentinelID reports whether id is a synthetic module id rather than a path.
func IsSentinelID(id string) bool {
	return strings.HasPrefix(id, BrowserExternalID) || strings.HasPrefix(id, OptionalPeerDepID)
}

// InvalidError reports a specifier that resolution handled but could not
// satisfy: a broken manifest, a field pointing nowhere, or an unexported
// subpath. It must surface to the caller instead of falling through.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return e.Reason
}

func invalidf(format string, args ...any) error {
	return &InvalidError{Reason: fmt.Sprintf(format, args...)}
}

func quote(value string) string {
	return strconv.Quote(value)
}
