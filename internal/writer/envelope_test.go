package writer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stacklok/registry-mirror/internal/registry"
)

func TestNewEnvelope(t *testing.T) {
	t.Parallel()

	generatedAt := time.Date(2024, 3, 1, 16, 30, 5, 123_456_789, time.FixedZone("CST", 8*3600))
	objects := []registry.Record{
		registry.NewTestRecord(registry.WithPackageName("status")),
		registry.NewTestRecord(registry.WithPackageName("a")),
	}

	env := NewEnvelope("", generatedAt, "https://raw.example/index.json", []string{"https://a.example"}, objects)

	assert.Equal(t, DefaultInfo, env.Info)
	assert.Equal(t, 2, env.Total)
	assert.Equal(t, "Fri, 01 Mar 2024 08:30:05 GMT", env.Time)
	assert.Equal(t, FormatVersion, env.Version)
	assert.Equal(t, "2024-03-01T08:30:05.123Z", env.GeneratedAt)
	assert.Equal(t, "https://raw.example/index.json", env.RawURL)
	assert.Equal(t, []string{"https://a.example"}, env.Sources)
	assert.Len(t, env.Objects, 2)
}

func TestNewEnvelope_EmptyCollections(t *testing.T) {
	t.Parallel()

	env := NewEnvelope("custom", time.Unix(0, 0), "", nil, nil)
	assert.Equal(t, "custom", env.Info)
	assert.Zero(t, env.Total)
	assert.NotNil(t, env.Sources)
	assert.NotNil(t, env.Objects)
}

func TestRawURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		repository string
		branch     string
		output     string
		expected   string
	}{
		{
			name:       "default layout",
			repository: "owner/repo",
			branch:     "master",
			output:     "index.json",
			expected:   "https://raw.githubusercontent.com/owner/repo/master/index.json",
		},
		{
			name:       "relative path in repository",
			repository: "owner/repo",
			branch:     "main",
			output:     "./public/index.json",
			expected:   "https://raw.githubusercontent.com/owner/repo/main/public/index.json",
		},
		{
			name:       "absolute path uses base name",
			repository: "owner/repo",
			branch:     "main",
			output:     "/srv/mirror/index.json",
			expected:   "https://raw.githubusercontent.com/owner/repo/main/index.json",
		},
		{
			name:       "surrounding slashes are trimmed",
			repository: "/owner/repo/",
			branch:     "master",
			output:     "index.json",
			expected:   "https://raw.githubusercontent.com/owner/repo/master/index.json",
		},
		{
			name:     "no repository",
			branch:   "master",
			output:   "index.json",
			expected: "",
		},
		{
			name:       "repository without owner",
			repository: "just-a-name",
			branch:     "master",
			output:     "index.json",
			expected:   "",
		},
		{
			name:       "repository with extra segments",
			repository: "org/team/repo",
			branch:     "master",
			output:     "index.json",
			expected:   "",
		},
		{
			name:       "empty owner",
			repository: "/repo",
			branch:     "master",
			output:     "index.json",
			expected:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, RawURL(tt.repository, tt.branch, tt.output))
		})
	}
}
