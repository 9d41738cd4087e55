// Package context builds the deterministic context snapshot (context_hash +
// hud_text) an agent acts on. Named context per spec.md's own terminology,
// not Go's context.Context (which this package's functions still accept as
// their first parameter, per convention).
package context

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/usize/monument/pkg/store"
)

// ComputeHash returns the anti-stale token: a deterministic 16-hex-char
// prefix of SHA-256 over "{namespace}:{supertick}:{phase}:{goal}", prefixed
// "sha256:". No third-party hashing library in the pack supersedes
// crypto/sha256 for this — see DESIGN.md.
func ComputeHash(namespace string, superTick int64, phase store.Phase, goal string) string {
	canonical := fmt.Sprintf("%s:%d:%s:%s", namespace, superTick, phase, goal)
	sum := sha256.Sum256([]byte(canonical))
	return "sha256:" + hex.EncodeToString(sum[:])[:16]
}
