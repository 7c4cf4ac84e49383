package status

import (
	"fmt"
	"math"
	"time"

	"github.com/stacklok/registry-mirror/internal/registry"
)

// Options describes the run the status record reports on
type Options struct {
	// PluginCount is the number of deduplicated upstream records
	PluginCount int

	// GeneratedAt is the generation timestamp of the run
	GeneratedAt time.Time

	// RawURL is the public URL of the artifact; used for the package links
	RawURL string

	// Verbose adds the process memory usage to the description
	Verbose bool

	// Location is the display time zone of the description; nil means UTC
	Location *time.Location

	// Publisher defaults to DefaultPublisherName/DefaultPublisherEmail
	Publisher Person

	// MemoryProbe returns the resident set size in bytes; nil means ResidentMemory
	MemoryProbe func() uint64
}

// Description renders the human-readable summary of the run
func Description(opts Options) string {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	desc := fmt.Sprintf("Koishi镜像源状态 | 最后更新: %s | 插件: %d",
		opts.GeneratedAt.In(loc).Format(DisplayLayout), opts.PluginCount)
	if !opts.Verbose {
		return desc
	}

	probe := opts.MemoryProbe
	if probe == nil {
		probe = ResidentMemory
	}
	rssMB := int64(math.Round(float64(probe()) / 1024 / 1024))
	return fmt.Sprintf("%s | 内存: %dMB", desc, rssMB)
}

// New returns the typed status record for opts
func New(opts Options) *Record {
	publisher := opts.Publisher
	if publisher.Name == "" {
		publisher.Name = DefaultPublisherName
	}
	if publisher.Email == "" {
		publisher.Email = DefaultPublisherEmail
	}

	generatedAt := registry.FormatTimestamp(opts.GeneratedAt)
	desc := Description(opts)

	return &Record{
		ID:        ID,
		Category:  "other",
		Shortname: Shortname,
		CreatedAt: generatedAt,
		UpdatedAt: generatedAt,
		Updated:   generatedAt,
		Portable:  false,
		Ignored:   false,
		Verified:  true,
		Score: Score{
			Final:  20,
			Detail: ScoreDetail{Quality: 20, Popularity: 20, Maintenance: 20},
		},
		Rating:  20,
		License: "PRIVATE",
		Package: Package{
			License:      "PRIVATE",
			Name:         PackageName,
			Version:      "1.0.0",
			Description:  desc,
			Keywords:     []string{"status", "mirror", "information"},
			Publisher:    publisher,
			Maintainers:  []Person{publisher},
			Date:         generatedAt,
			Links:        Links{NPM: opts.RawURL, Homepage: opts.RawURL},
			Contributors: []Person{},
		},
		Flags: Flags{Insecure: 0},
		Manifest: Manifest{
			Description: desc,
			Locales:     []string{},
			Service: Service{
				Required:   []string{},
				Optional:   []string{},
				Implements: []string{},
			},
		},
		PublishSize: 0,
		Insecure:    false,
		InstallSize: 0,
		Dependents:  0,
		Downloads:   Downloads{LastMonth: 10000},
	}
}

// Build returns the status record for opts, checked against the plugin
// record schema.
func Build(opts Options) (registry.Record, error) {
	rec, err := registry.RecordFromValue(New(opts))
	if err != nil {
		return registry.Record{}, err
	}
	if err := Validate(rec); err != nil {
		return registry.Record{}, fmt.Errorf("status record does not match schema: %w", err)
	}
	return rec, nil
}
