package orchestrator

// DefinitionsSchema is the JSON Schema for agent definition files
const DefinitionsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["agents"],
  "properties": {
    "agents": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "kind"],
        "properties": {
          "id": {
            "type": "string",
            "pattern": "^[a-z0-9_-]+$",
            "description": "Unique agent identifier"
          },
          "name": {
            "type": "string",
            "description": "Display name"
          },
          "kind": {
            "type": "string",
            "enum": ["direct", "react", "planner"],
            "description": "Initial strategy kind"
          },
          "active": {
            "type": "boolean"
          },
          "capabilities": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "complexity"],
              "properties": {
                "name": {
                  "type": "string",
                  "minLength": 1
                },
                "domains": {
                  "type": "array",
                  "items": {"type": "string"}
                },
                "complexity": {
                  "type": "string",
                  "enum": ["simple", "medium", "complex"]
                },
                "priority": {
                  "type": "number",
                  "minimum": 0
                }
              }
            }
          },
          "engine": {
            "type": "object",
            "properties": {
              "model": {"type": "string"},
              "temperature": {"type": "number", "minimum": 0, "maximum": 1},
              "max_tokens": {"type": "integer", "minimum": 0},
              "system_prompt": {"type": "string"},
              "max_iterations": {"type": "integer", "minimum": 0},
              "tools": {
                "type": "array",
                "items": {"type": "string"}
              },
              "timeout": {
                "type": "string",
                "description": "Go duration, e.g. 90s"
              }
            }
          }
        }
      }
    }
  }
}`
