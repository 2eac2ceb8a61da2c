package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "main.txt", false},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
		{"**/*.go", "a/b/c.go", true},
		{"**/*.go", "c.go", true},
		{"src/**", "src/deep/nested/file", true},
		{"{a,b}.txt", "a.txt", true},
		{"{a,b}.txt", "b.txt", true},
		{"{a,b}.txt", "c.txt", false},
		{"*.{go,txt}", "x.txt", true},
		{"!*.go", "main.go", false},
		{"!*.go", "main.txt", true},
		{"*", "anything", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, matchGlob(c.pattern, c.name, true), "%s vs %s", c.pattern, c.name)
	}
}

func TestMatchGlobCaseFolding(t *testing.T) {
	assert.False(t, matchGlob("*.GO", "main.go", true))
	assert.True(t, matchGlob("*.GO", "main.go", false))
}
