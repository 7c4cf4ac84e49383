package registry

import "fmt"

// TestRecordOption configures a record built by NewTestRecord
type TestRecordOption func(map[string]any)

// NewTestRecord builds a Record from options. It panics if the fields cannot
// be marshaled, which the provided options never cause.
func NewTestRecord(opts ...TestRecordOption) Record {
	fields := map[string]any{}
	for _, opt := range opts {
		opt(fields)
	}
	rec, err := RecordFromValue(fields)
	if err != nil {
		panic(fmt.Sprintf("failed to build test record: %v", err))
	}
	return rec
}

// WithPackageName sets package.name
func WithPackageName(name string) TestRecordOption {
	return func(fields map[string]any) {
		pkg, _ := fields["package"].(map[string]any)
		if pkg == nil {
			pkg = map[string]any{}
		}
		pkg["name"] = name
		fields["package"] = pkg
	}
}

// WithShortname sets shortname
func WithShortname(name string) TestRecordOption {
	return WithField("shortname", name)
}

// WithUpdatedAt sets updatedAt
func WithUpdatedAt(ts string) TestRecordOption {
	return WithField("updatedAt", ts)
}

// WithField sets an arbitrary top-level field
func WithField(key string, value any) TestRecordOption {
	return func(fields map[string]any) {
		fields[key] = value
	}
}
