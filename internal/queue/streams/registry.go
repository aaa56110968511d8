package streams

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaRegistry stores compiled JSON Schemas keyed by "event_type@version".
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewSchemaRegistry returns a registry preloaded with the audit schemas.
func NewSchemaRegistry() (*SchemaRegistry, error) {
	r := &SchemaRegistry{schemas: make(map[string]*jsonschema.Schema)}
	for _, def := range auditDefinitions {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func key(eventType, version string) string { return eventType + "@" + version }

// Register compiles and stores a schema definition.
func (r *SchemaRegistry) Register(def Definition) error {
	if def.EventType == "" || def.Version == "" {
		return fmt.Errorf("event type and version must be provided")
	}
	if len(def.Schema) == 0 {
		return fmt.Errorf("schema for %s is empty", def.EventType)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(def.EventType+".json", bytes.NewReader(def.Schema)); err != nil {
		return fmt.Errorf("add schema resource %s: %w", def.EventType, err)
	}
	compiled, err := compiler.Compile(def.EventType + ".json")
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", def.EventType, err)
	}
	r.mu.Lock()
	r.schemas[key(def.EventType, def.Version)] = compiled
	r.mu.Unlock()
	return nil
}

// Validate checks payload bytes against the schema for event type/version.
func (r *SchemaRegistry) Validate(eventType, version string, payload []byte) error {
	r.mu.RLock()
	schema, ok := r.schemas[key(eventType, version)]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no schema registered for event %q version %q", eventType, version)
	}
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("payload validation failed: %w", err)
	}
	return nil
}
