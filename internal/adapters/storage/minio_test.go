package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"cat.png":              "cat.png",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\clip.mp4`: "clip.mp4",
		"my holiday pic!.jpg":  "my_holiday_pic_.jpg",
		"..":                   "file",
		"":                     "file",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestObjectName(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := ObjectName("cat.png", now)
	b := ObjectName("cat.png", now)

	assert.True(t, strings.HasPrefix(a, "uploads/1700000000_"))
	assert.True(t, strings.HasSuffix(a, "_cat.png"))
	assert.NotEqual(t, a, b)
}
