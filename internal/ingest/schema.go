package ingest

import (
	"errors"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rcliao/tally-replica/internal/model"
)

const envelopeSchemaURL = "https://tally-replica.local/push-envelope.json"

// envelopeSchema accepts any object whose known fields are strings. Category
// fields may also be null, which pushers send for categories they skipped.
func envelopeSchema() map[string]any {
	props := map[string]any{
		"source": map[string]any{"type": "string"},
		"time":   map[string]any{"type": "string"},
	}
	for _, c := range model.Categories {
		props[c.Field()] = map[string]any{"type": []any{"string", "null"}}
	}
	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
}

func compileEnvelopeSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(envelopeSchemaURL, envelopeSchema()); err != nil {
		return nil, err
	}
	return c.Compile(envelopeSchemaURL)
}

// schemaMessage flattens a validation error into one line naming the
// offending fields.
func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var paths []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			path := "$"
			if len(e.InstanceLocation) > 0 {
				path = "$." + strings.Join(e.InstanceLocation, ".")
			}
			paths = append(paths, path)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	if len(paths) == 1 && paths[0] == "$" {
		return "push body must be a JSON object"
	}
	return "fields must be strings: " + strings.Join(paths, ", ")
}
