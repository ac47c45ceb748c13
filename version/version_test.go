package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionDefaultsToDev(t *testing.T) {
	assert.NotEmpty(t, Version())
}

func TestVersionLdflagsOverride(t *testing.T) {
	old := version
	defer func() { version = old }()

	version = "1.2.3"
	assert.Equal(t, "1.2.3", Version())
}

func TestInfoFormat(t *testing.T) {
	info := Info()

	assert.True(t, strings.HasPrefix(info, "sightline version "))
}

func TestInfoIncludesCommitAndDate(t *testing.T) {
	oldCommit, oldDate := gitCommit, buildDate
	defer func() { gitCommit, buildDate = oldCommit, oldDate }()

	gitCommit = "abc1234"
	buildDate = "2026-01-01"
	info := Info()

	assert.Contains(t, info, "commit: abc1234")
	assert.Contains(t, info, "built: 2026-01-01")
}

func TestLogAttrsPairs(t *testing.T) {
	attrs := LogAttrs()

	assert.GreaterOrEqual(t, len(attrs), 2)
	assert.Equal(t, 0, len(attrs)%2, "attrs must be key/value pairs")
	assert.Equal(t, "version", attrs[0])
}
