package support

import (
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseNumberFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^BT-\d{8}-\d{3}$`)
	rnd := rand.New(rand.NewSource(1))
	at := time.Date(2026, 1, 7, 23, 59, 59, 0, time.UTC)

	for i := 0; i < 1000; i++ {
		number := caseNumber("BT", at, rnd)
		assert.True(t, pattern.MatchString(number), "unexpected case number %q", number)
	}
}

func TestCaseNumberEmbedsDate(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	number := caseNumber("BT", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), rnd)
	require.Contains(t, number, "-20260901-")
}

func TestCaseNumberZeroPadsSuffix(t *testing.T) {
	at := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	// Walk seeds until the suffix draw lands below 10.
	for seed := int64(0); seed < 1000; seed++ {
		probe := rand.New(rand.NewSource(seed))
		if probe.Intn(1000) >= 10 {
			continue
		}
		number := caseNumber("BT", at, rand.New(rand.NewSource(seed)))
		assert.Regexp(t, `-00\d$`, number)
		return
	}
	t.Fatal("no seed produced a small suffix")
}
