// Package bindings decides whether a remote tool surface implements a
// declared capability contract by structurally comparing tool schemas, and
// reverse-engineers which collections a surface exposes from its tool names.
package bindings

import (
	"slices"

	"mcpdeck/internal/mcp"
)

// Compatible reports whether a candidate schema structurally satisfies a
// required schema: every field the requirement marks required must be present
// and itself compatible in the candidate; extra candidate fields are allowed.
// A nil requirement accepts anything.
func Compatible(required, candidate *mcp.JSONSchema) bool {
	if required == nil {
		return true
	}
	if candidate == nil {
		return false
	}

	if !typeCompatible(required.Type, candidate.Type) {
		return false
	}

	if len(required.Enum) > 0 && len(candidate.Enum) > 0 {
		// The candidate must accept every value the requirement demands.
		for _, v := range required.Enum {
			if !slices.Contains(candidate.Enum, v) {
				return false
			}
		}
	}

	switch required.Type {
	case "object":
		for _, name := range required.Required {
			prop, ok := candidate.Properties[name]
			if !ok {
				return false
			}
			if !Compatible(required.Properties[name], prop) {
				return false
			}
		}
		// Optional requirement fields are checked only when the candidate
		// declares them.
		for name, reqProp := range required.Properties {
			if slices.Contains(required.Required, name) {
				continue
			}
			if prop, ok := candidate.Properties[name]; ok {
				if !Compatible(reqProp, prop) {
					return false
				}
			}
		}
	case "array":
		if required.Items != nil {
			if !Compatible(required.Items, candidate.Items) {
				return false
			}
		}
	}

	return true
}

// typeCompatible compares schema node types. An empty required type accepts
// anything; an integer candidate satisfies a number requirement.
func typeCompatible(required, candidate string) bool {
	if required == "" {
		return true
	}
	if required == candidate {
		return true
	}
	return required == "number" && candidate == "integer"
}
