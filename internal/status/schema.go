package status

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/stacklok/registry-mirror/internal/registry"
)

const schemaLocation = "plugin-record.json"

//go:embed schema/plugin-record.json
var pluginRecordSchema []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(pluginRecordSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse plugin record schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaLocation, doc); err != nil {
		return nil, fmt.Errorf("failed to add plugin record schema: %w", err)
	}
	return c.Compile(schemaLocation)
})

// Schema returns the embedded JSON Schema of a plugin record
func Schema() []byte {
	return bytes.Clone(pluginRecordSchema)
}

// Validate checks rec against the plugin record schema
func Validate(rec registry.Record) error {
	sch, err := compileSchema()
	if err != nil {
		return err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(rec.Raw()))
	if err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return sch.Validate(inst)
}

// ValidateStatus checks that rec is a valid status record: it matches the
// plugin record schema and carries the reserved package name.
func ValidateStatus(rec registry.Record) error {
	if err := Validate(rec); err != nil {
		return err
	}
	if name := rec.Get(registry.PathPackageName).String(); name != PackageName {
		return fmt.Errorf("expected package.name %q, got %q", PackageName, name)
	}
	if id := rec.Get("_id").String(); id != ID {
		return fmt.Errorf("expected _id %q, got %q", ID, id)
	}
	return nil
}
