package support

import (
	"fmt"
	"math/rand"
	"time"
)

// caseNumber builds a human-readable case identifier:
// PREFIX-YYYYMMDD-NNN with a zero-padded 3-digit random suffix.
// Uniqueness is best effort only; the suffix is not checked against
// existing rows, so same-day collisions are possible (1 in 1000).
func caseNumber(prefix string, at time.Time, rnd *rand.Rand) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, at.Format("20060102"), rnd.Intn(1000))
}
