package attribute

import "fmt"

// FieldType names the schema type for one field in a schema-driven
// attribute factory.
type FieldType string

const (
	FieldString    FieldType = "string"
	FieldNumber    FieldType = "number"
	FieldBoolean   FieldType = "boolean"
	FieldStringArr FieldType = "string[]"
	FieldNumberArr FieldType = "number[]"
)

// Schema maps field names (dot paths allowed) to their declared type.
type Schema map[string]FieldType

// FromSchema builds one Attribute per schema entry, each a dot-path walk
// with an optional name prefix applied to the produced attribute's Name
// (not to the underlying path). Array types produce multi-valued
// attributes; scalar types produce single-valued attributes.
func FromSchema(schema Schema, namePrefix string) map[string]Attribute {
	out := make(map[string]Attribute, len(schema))
	for field, typ := range schema {
		attrName := field
		if namePrefix != "" {
			attrName = namePrefix + field
		}
		switch typ {
		case FieldStringArr, FieldNumberArr:
			out[attrName] = DotPathMulti(attrName, field)
		default:
			out[attrName] = DotPath(attrName, field)
		}
	}
	return out
}

// ValidateSchema reports an error for any field whose declared type is not
// one of the recognized FieldType values.
func ValidateSchema(schema Schema) error {
	for field, typ := range schema {
		switch typ {
		case FieldString, FieldNumber, FieldBoolean, FieldStringArr, FieldNumberArr:
		default:
			return fmt.Errorf("attribute: field %q has unrecognized type %q", field, typ)
		}
	}
	return nil
}
