// Package schema holds the JSON contracts of the request surface. Each
// operation's payload is validated against its schema before it
// reaches the domain code, so malformed requests fail as Validation
// errors with field-level detail instead of surfacing as odd domain
// behavior.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
)

const component = "schema"

// idPattern matches the externally-visible identifier format.
const idPattern = `^[a-z0-9][a-z0-9-]*$`

const defs = `
"definitions": {
	"id": {"type": "string", "pattern": "` + idPattern + `", "maxLength": 48},
	"configEntry": {
		"type": "object",
		"properties": {
			"id": {"type": "string"},
			"hasPriority": {"type": "boolean"},
			"observedProperty": {"$ref": "#/definitions/id"},
			"unit": {"$ref": "#/definitions/id"},
			"hasFeatureOfInterest": {"$ref": "#/definitions/id"},
			"disciplines": {"type": "array", "items": {"$ref": "#/definitions/id"}},
			"usedProcedures": {"type": "array", "items": {"$ref": "#/definitions/id"}}
		},
		"additionalProperties": false
	},
	"location": {
		"type": "object",
		"properties": {
			"id": {"type": "string"},
			"geometry": {
				"type": "object",
				"properties": {
					"type": {"enum": ["Point", "LineString", "Polygon"]},
					"coordinates": {"type": "array"}
				},
				"required": ["type", "coordinates"]
			},
			"validAt": {"type": "integer"}
		},
		"required": ["geometry"]
	}
}`

// texts maps operation names to their payload schemas.
var texts = map[string]string{
	"sensor.create": `{
		"type": "object",
		"properties": {
			"id": {"$ref": "#/definitions/id"},
			"label": {"type": "string"},
			"description": {"type": "string"},
			"permanentHost": {"$ref": "#/definitions/id"},
			"hasDeployment": {"$ref": "#/definitions/id"},
			"isHostedBy": {"$ref": "#/definitions/id"},
			"initialConfig": {"type": "array", "items": {"$ref": "#/definitions/configEntry"}}
		},
		"required": ["id"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"sensor.update": `{
		"type": "object",
		"properties": {
			"id": {"$ref": "#/definitions/id"},
			"updates": {
				"type": "object",
				"properties": {
					"label": {"type": "string"},
					"description": {"type": "string"},
					"permanentHost": {"type": "string"},
					"hasDeployment": {"type": "string"},
					"isHostedBy": {"type": "string"},
					"currentConfig": {"type": "array", "items": {"$ref": "#/definitions/configEntry"}}
				},
				"additionalProperties": false
			}
		},
		"required": ["id", "updates"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"sensor.get": `{
		"type": "object",
		"properties": {"id": {"$ref": "#/definitions/id"}},
		"required": ["id"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"sensor.delete": `{
		"type": "object",
		"properties": {"id": {"$ref": "#/definitions/id"}},
		"required": ["id"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"platform.create": `{
		"type": "object",
		"properties": {
			"id": {"$ref": "#/definitions/id"},
			"label": {"type": "string"},
			"description": {"type": "string"},
			"ownerDeployment": {"$ref": "#/definitions/id"},
			"inDeployments": {"type": "array", "items": {"$ref": "#/definitions/id"}},
			"isHostedBy": {"$ref": "#/definitions/id"},
			"static": {"type": "boolean"},
			"location": {"$ref": "#/definitions/location"},
			"updateLocationWithSensor": {"$ref": "#/definitions/id"}
		},
		"required": ["id", "ownerDeployment"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"platform.rehost": `{
		"type": "object",
		"properties": {
			"id": {"$ref": "#/definitions/id"},
			"hostId": {"$ref": "#/definitions/id"}
		},
		"required": ["id", "hostId"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"platform.unhost": `{
		"type": "object",
		"properties": {"id": {"$ref": "#/definitions/id"}},
		"required": ["id"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"platform.get": `{
		"type": "object",
		"properties": {"id": {"$ref": "#/definitions/id"}},
		"required": ["id"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"platform.delete": `{
		"type": "object",
		"properties": {"id": {"$ref": "#/definitions/id"}},
		"required": ["id"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"deployment.create": `{
		"type": "object",
		"properties": {
			"id": {"$ref": "#/definitions/id"},
			"label": {"type": "string"},
			"description": {"type": "string"},
			"public": {"type": "boolean"}
		},
		"required": ["id"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"deployment.update": `{
		"type": "object",
		"properties": {
			"id": {"$ref": "#/definitions/id"},
			"updates": {
				"type": "object",
				"properties": {
					"label": {"type": "string"},
					"description": {"type": "string"},
					"public": {"type": "boolean"}
				},
				"additionalProperties": false
			}
		},
		"required": ["id", "updates"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"deployment.get": `{
		"type": "object",
		"properties": {"id": {"$ref": "#/definitions/id"}},
		"required": ["id"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"deployment.delete": `{
		"type": "object",
		"properties": {"id": {"$ref": "#/definitions/id"}},
		"required": ["id"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"permanenthost.create": `{
		"type": "object",
		"properties": {
			"id": {"$ref": "#/definitions/id"},
			"label": {"type": "string"},
			"description": {"type": "string"},
			"static": {"type": "boolean"},
			"location": {"$ref": "#/definitions/location"},
			"updateLocationWithSensor": {"$ref": "#/definitions/id"}
		},
		"required": ["id"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"permanenthost.register": `{
		"type": "object",
		"properties": {
			"registrationKey": {"type": "string", "minLength": 8},
			"deploymentId": {"$ref": "#/definitions/id"}
		},
		"required": ["registrationKey", "deploymentId"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"context.get-live": `{
		"type": "object",
		"properties": {"sensorId": {"$ref": "#/definitions/id"}},
		"required": ["sensorId"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"context.get-at": `{
		"type": "object",
		"properties": {
			"sensorId": {"$ref": "#/definitions/id"},
			"timestamp": {"type": "integer", "minimum": 1}
		},
		"required": ["sensorId", "timestamp"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"observation.add-context": `{
		"type": "object",
		"properties": {
			"madeBySensor": {"type": "string", "minLength": 1},
			"resultTime": {"type": "string", "minLength": 1}
		},
		"required": ["madeBySensor", "resultTime"],
		` + defs + `
	}`,

	"vocabulary.create": `{
		"type": "object",
		"properties": {
			"id": {"$ref": "#/definitions/id"},
			"kind": {"enum": ["discipline", "unit", "observableproperty", "procedure", "featureofinterest"]},
			"label": {"type": "string"},
			"description": {"type": "string"}
		},
		"required": ["id", "kind"],
		"additionalProperties": false,
		` + defs + `
	}`,

	"vocabulary.delete": `{
		"type": "object",
		"properties": {
			"id": {"$ref": "#/definitions/id"},
			"kind": {"enum": ["discipline", "unit", "observableproperty", "procedure", "featureofinterest"]}
		},
		"required": ["id", "kind"],
		"additionalProperties": false,
		` + defs + `
	}`,
}

// Validator holds the compiled schemas.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles every operation schema. A schema that fails to
// compile is a programming error and is returned, not deferred to
// request time.
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(texts))}
	for operation, text := range texts {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", operation, err)
		}
		v.schemas[operation] = compiled
	}
	return v, nil
}

// Operations returns the names of every schema-covered operation.
func (v *Validator) Operations() []string {
	names := make([]string, 0, len(v.schemas))
	for name := range v.schemas {
		names = append(names, name)
	}
	return names
}

// Validate checks a payload against the named operation's schema.
func (v *Validator) Validate(operation string, payload []byte) error {
	compiled, ok := v.schemas[operation]
	if !ok {
		return errors.Validationf(component, "Validate", "no schema for operation %q", operation)
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return errors.Validationf(component, "Validate", "malformed JSON payload: %v", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return errors.Validationf(component, "Validate", "invalid %s payload: %s", operation, strings.Join(problems, "; "))
	}
	return nil
}
