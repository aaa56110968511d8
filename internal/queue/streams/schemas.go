package streams

// Definition describes a schema entry managed by the registry.
type Definition struct {
	EventType string
	Version   string
	Schema    []byte
}

var auditDefinitions = []Definition{
	{
		EventType: "audit.access",
		Version:   "v1",
		Schema: []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["kind", "agent", "access"],
  "properties": {
    "kind": {"const": "access"},
    "agent": {"type": "string", "minLength": 1},
    "access": {
      "type": "object",
      "required": ["fields", "bytes"],
      "properties": {
        "fields": {"type": "array", "items": {"type": "string"}},
        "bytes": {"type": "integer", "minimum": 0}
      }
    }
  },
  "additionalProperties": true
}`),
	},
	{
		EventType: "audit.merge",
		Version:   "v1",
		Schema: []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["kind", "agent", "merge"],
  "properties": {
    "kind": {"const": "merge"},
    "agent": {"type": "string", "minLength": 1},
    "merge": {
      "type": "object",
      "required": ["decisions", "merged", "blocked"],
      "properties": {
        "decisions": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["field", "allowed"],
            "properties": {
              "field": {"type": "string"},
              "allowed": {"type": "boolean"}
            }
          }
        },
        "merged": {"type": "integer", "minimum": 0},
        "blocked": {"type": "integer", "minimum": 0}
      }
    }
  },
  "additionalProperties": true
}`),
	},
	{
		EventType: "audit.failure",
		Version:   "v1",
		Schema: []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["kind", "agent", "failure"],
  "properties": {
    "kind": {"const": "failure"},
    "agent": {"type": "string", "minLength": 1},
    "failure": {
      "type": "object",
      "required": ["message"],
      "properties": {
        "message": {"type": "string"},
        "panic": {"type": "boolean"}
      }
    }
  },
  "additionalProperties": true
}`),
	},
	{
		EventType: "audit.pass",
		Version:   "v1",
		Schema: []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["kind", "pass"],
  "properties": {
    "kind": {"const": "pass"},
    "pass": {
      "type": "object",
      "required": ["iteration", "phase", "mode", "next_action"],
      "properties": {
        "iteration": {"type": "integer", "minimum": 0},
        "phase": {"type": "string"},
        "next_phase": {"type": "string"},
        "mode": {"enum": ["sequential", "parallel", "skip", "done", "capped"]},
        "agents": {"type": "array", "items": {"type": "string"}},
        "next_action": {"enum": ["supervisor", "analytics"]}
      }
    }
  },
  "additionalProperties": true
}`),
	},
}

// Definitions returns a copy of the audit schema definitions.
func Definitions() []Definition {
	defs := make([]Definition, len(auditDefinitions))
	copy(defs, auditDefinitions)
	return defs
}
