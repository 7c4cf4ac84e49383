package sources

import (
	"errors"

	"github.com/tidwall/gjson"

	"github.com/stacklok/registry-mirror/internal/registry"
)

// ObjectsPath is the feed field holding the plugin records
const ObjectsPath = "objects"

// ErrInvalidFeed is returned when a feed body is not valid JSON
var ErrInvalidFeed = errors.New("invalid JSON feed")

// ParseFeed extracts the plugin records of a feed body.
// A body without an "objects" array yields no records; array elements that
// are not JSON objects are skipped.
func ParseFeed(data []byte) ([]registry.Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidFeed
	}

	objects := gjson.GetBytes(data, ObjectsPath)
	if !objects.IsArray() {
		return nil, nil
	}

	var records []registry.Record
	objects.ForEach(func(_, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		rec, err := registry.NewRecord([]byte(value.Raw))
		if err == nil {
			records = append(records, rec)
		}
		return true
	})
	return records, nil
}
