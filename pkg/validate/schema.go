package validate

import (
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache compiles each embedded schema exactly once; compilation is
// pure and the compiled *jsonschema.Schema is safe for concurrent use.
var schemaCache = struct {
	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}{schemas: map[string]*jsonschema.Schema{}}

func compile(name, schemaJSON string) (*jsonschema.Schema, error) {
	schemaCache.mu.Lock()
	defer schemaCache.mu.Unlock()

	if s, ok := schemaCache.schemas[name]; ok {
		return s, nil
	}

	compiler := jsonschema.NewCompiler()
	resourceURL := "weftend://schema/" + name
	if err := compiler.AddResource(resourceURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("validate: add schema resource %s: %w", name, err)
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("validate: compile schema %s: %w", name, err)
	}
	schemaCache.schemas[name] = schema
	return schema, nil
}

// againstSchema validates a decoded JSON value (as produced by
// json.Unmarshal into interface{}) against the named embedded schema and
// appends one Issue per schema validation error to c, each tagged with the
// fixed code "SCHEMA_INVALID" and the schema's own instance-location path.
func (c *collector) againstSchema(name, schemaJSON string, value any, basePath string) {
	schema, err := compile(name, schemaJSON)
	if err != nil {
		// A broken embedded schema is a programmer error in this package,
		// not an externally sourced fault; still fail closed rather than
		// silently skip structural validation.
		c.add("SCHEMA_INVALID", basePath, err.Error())
		return
	}
	if err := schema.Validate(value); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			for _, cause := range flattenValidationError(ve) {
				path := basePath
				if cause.InstanceLocation != "" {
					path = basePath + cause.InstanceLocation
				}
				c.add("SCHEMA_INVALID", path, cause.Message)
			}
			return
		}
		c.add("SCHEMA_INVALID", basePath, err.Error())
	}
}

// flattenValidationError walks a jsonschema.ValidationError's Causes tree
// and returns the leaf errors, which carry the most specific messages.
func flattenValidationError(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		out = append(out, flattenValidationError(cause)...)
	}
	return out
}
