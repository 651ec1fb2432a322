package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	testCases := []struct {
		name string
		info Info
		want string
	}{
		{"release with commit", Info{Version: "v1.2.0", Commit: "abc1234def"}, "v1.2.0 (abc1234)"},
		{"dev with commit", Info{Version: "dev", Commit: "abc1234def"}, "dev-abc1234"},
		{"dev without commit", Info{Version: "dev"}, "dev"},
		{"short commit ignored", Info{Version: "v1.0.0", Commit: "abc"}, "v1.0.0"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.info.Short())
		})
	}
}

func TestIsRelease(t *testing.T) {
	assert.True(t, Info{Version: "v0.3.1"}.IsRelease())
	assert.False(t, Info{Version: "dev"}.IsRelease())
	assert.False(t, Info{Version: "dev-abc1234"}.IsRelease())
}

func TestString(t *testing.T) {
	info := Info{
		Version:   "v1.0.0",
		Commit:    "abc1234",
		Modified:  true,
		Date:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		GoVersion: "go1.24.4",
		Platform:  "linux/amd64",
	}
	assert.Equal(t, "Version: v1.0.0\nCommit: abc1234 (dirty)\nBuilt: 2025-03-01T12:00:00Z\nGo: go1.24.4\nPlatform: linux/amd64", info.String())
}

func TestGetUsesLinkTimeValues(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, Commit, Date
	defer func() { Version, Commit, Date = oldVersion, oldCommit, oldDate }()

	Version, Commit, Date = "v9.9.9", "feedface00", "2025-01-02T03:04:05Z"
	info := Get()
	assert.Equal(t, "v9.9.9", info.Version)
	assert.Equal(t, "feedface00", info.Commit)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), info.Date)
	assert.NotEmpty(t, info.GoVersion)
}
