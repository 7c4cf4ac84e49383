package status

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/registry-mirror/internal/registry"
)

var testGeneratedAt = time.Date(2024, 3, 1, 16, 30, 5, 123_000_000, time.UTC)

func fixedProbe(bytes uint64) func() uint64 {
	return func() uint64 { return bytes }
}

func TestDescription(t *testing.T) {
	t.Parallel()

	shanghai := time.FixedZone("CST", 8*3600)

	tests := []struct {
		name     string
		opts     Options
		expected string
	}{
		{
			name: "verbose includes memory",
			opts: Options{
				PluginCount: 1234,
				GeneratedAt: testGeneratedAt,
				Verbose:     true,
				MemoryProbe: fixedProbe(50 * 1024 * 1024),
			},
			expected: "Koishi镜像源状态 | 最后更新: 2024/03/01 16:30:05 | 插件: 1234 | 内存: 50MB",
		},
		{
			name: "memory is rounded to whole megabytes",
			opts: Options{
				GeneratedAt: testGeneratedAt,
				Verbose:     true,
				MemoryProbe: fixedProbe(1024*1024 + 512*1024),
			},
			expected: "Koishi镜像源状态 | 最后更新: 2024/03/01 16:30:05 | 插件: 0 | 内存: 2MB",
		},
		{
			name: "terse omits memory",
			opts: Options{
				PluginCount: 7,
				GeneratedAt: testGeneratedAt,
				MemoryProbe: func() uint64 { panic("probe must not be called") },
			},
			expected: "Koishi镜像源状态 | 最后更新: 2024/03/01 16:30:05 | 插件: 7",
		},
		{
			name: "display time zone",
			opts: Options{
				PluginCount: 7,
				GeneratedAt: testGeneratedAt,
				Location:    shanghai,
			},
			expected: "Koishi镜像源状态 | 最后更新: 2024/03/02 00:30:05 | 插件: 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Description(tt.opts))
		})
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	const rawURL = "https://raw.githubusercontent.com/owner/repo/master/index.json"

	rec, err := Build(Options{
		PluginCount: 3,
		GeneratedAt: testGeneratedAt,
		RawURL:      rawURL,
		Verbose:     true,
		MemoryProbe: fixedProbe(30 * 1024 * 1024),
	})
	require.NoError(t, err)

	key, ok := rec.Key()
	require.True(t, ok)
	assert.Equal(t, PackageName, key)
	assert.Equal(t, ID, rec.Get("_id").String())
	assert.Equal(t, Shortname, rec.Get("shortname").String())

	const stamp = "2024-03-01T16:30:05.123Z"
	for _, path := range []string{"createdAt", "updatedAt", "updated", "package.date"} {
		assert.Equal(t, stamp, rec.Get(path).String(), path)
	}
	assert.True(t, rec.UpdatedAt().Equal(testGeneratedAt))

	assert.Equal(t, rawURL, rec.Get("package.links.npm").String())
	assert.Equal(t, rawURL, rec.Get("package.links.homepage").String())
	assert.Equal(t, DefaultPublisherName, rec.Get("package.publisher.name").String())
	assert.Equal(t, DefaultPublisherEmail, rec.Get("package.maintainers.0.email").String())
	assert.Equal(t, rec.Get("package.description").String(), rec.Get("manifest.description").String())
	assert.Contains(t, rec.Get("package.description").String(), "内存: 30MB")
	assert.Equal(t, int64(10000), rec.Get("downloads.lastMonth").Int())
	assert.Equal(t, int64(0), rec.Get("flags.insecure").Int())
	assert.True(t, rec.Get("verified").Bool())
	assert.Equal(t, `[]`, rec.Get("package.contributors").Raw)
	assert.Equal(t, `[]`, rec.Get("manifest.service.implements").Raw)

	assert.NoError(t, ValidateStatus(rec))
}

func TestBuild_KeyOrder(t *testing.T) {
	t.Parallel()

	rec, err := Build(Options{GeneratedAt: testGeneratedAt})
	require.NoError(t, err)

	dec := json.NewDecoder(bytes.NewReader(rec.Raw()))
	_, err = dec.Token()
	require.NoError(t, err)

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		require.NoError(t, dec.Decode(&skip))
	}
	assert.Equal(t, []string{
		"_id", "category", "shortname", "createdAt", "updatedAt", "updated",
		"portable", "ignored", "verified", "score", "rating", "license",
		"package", "flags", "manifest", "publishSize", "insecure",
		"installSize", "dependents", "downloads",
	}, keys)
}

func TestBuild_CustomPublisher(t *testing.T) {
	t.Parallel()

	rec, err := Build(Options{
		GeneratedAt: testGeneratedAt,
		Publisher:   Person{Name: "Mirror Ops"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mirror Ops", rec.Get("package.publisher.name").String())
	assert.Equal(t, DefaultPublisherEmail, rec.Get("package.publisher.email").String())
	assert.Equal(t, "Mirror Ops", rec.Get("package.maintainers.0.name").String())
}

func TestResidentMemory(t *testing.T) {
	t.Parallel()
	assert.Positive(t, ResidentMemory())
}

func TestBuild_IsNotAnUpstreamRecord(t *testing.T) {
	t.Parallel()

	upstream := registry.NewTestRecord(registry.WithPackageName(PackageName))
	assert.Error(t, ValidateStatus(upstream))
}
