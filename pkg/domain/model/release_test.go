package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/shipyard/pkg/domain/model"
)

func TestTagName(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		version  model.Version
		expected string
	}{
		{
			name:     "No prefix keeps raw version",
			prefix:   "",
			version:  "1.2.3",
			expected: "1.2.3",
		},
		{
			name:     "v prefix",
			prefix:   "v",
			version:  "1.2.3",
			expected: "v1.2.3",
		},
		{
			name:     "v prefix with v-prefixed version",
			prefix:   "v",
			version:  "v1.2.3",
			expected: "v1.2.3",
		},
		{
			name:     "No prefix drops v from version",
			prefix:   "",
			version:  "v1.2.3",
			expected: "1.2.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Equal(t, model.TagName(tt.prefix, tt.version), tt.expected)
		})
	}
}

func TestPlatform_ExcludedSet(t *testing.T) {
	p := &model.Platform{ExcludedExtensions: []string{".yml", ".blockmap"}}
	set := p.ExcludedSet()

	_, ok := set[".yml"]
	gt.True(t, ok)
	_, ok = set[".YML"]
	gt.False(t, ok)
	gt.Equal(t, len(set), 2)
}
