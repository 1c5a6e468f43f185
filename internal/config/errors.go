package config

import (
	"fmt"
	"reflect"
)

// getStructName returns the unqualified type name of a struct value or
// pointer, used by ConfigError to name the struct a bad field belongs to.
func getStructName(v interface{}) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// getStructFieldType returns the Go type name of a named field on v, or
// "?" if the field does not exist.
func getStructFieldType(v interface{}, fieldName string) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	f, ok := t.FieldByName(fieldName)
	if !ok {
		return "?"
	}
	return f.Type.String()
}

// ConfigError is the base struct embedded by each config error kind,
// generalized from the teacher's own ConfigError family in
// streamer/configuration.go to this package's run-configuration fields.
type ConfigError struct {
	ClassName string
	FieldName string
	FieldType string
}

func newConfigError(v interface{}, fieldName string) ConfigError {
	return ConfigError{
		ClassName: getStructName(v),
		FieldName: fieldName,
		FieldType: getStructFieldType(v, fieldName),
	}
}

// UnrecognizedField is raised when the YAML document contains a field
// unknown to the target struct.
type UnrecognizedField struct {
	ConfigError
}

func NewUnrecognizedField(v interface{}, fieldName string) *UnrecognizedField {
	return &UnrecognizedField{newConfigError(v, fieldName)}
}

func (e UnrecognizedField) Error() string {
	return fmt.Sprintf("%s contains unrecognized field: %s", e.ClassName, e.FieldName)
}

// MissingRequiredField is raised when validate.v2 reports a zero-value
// required field.
type MissingRequiredField struct {
	ConfigError
}

func NewMissingRequiredField(v interface{}, fieldName string) *MissingRequiredField {
	return &MissingRequiredField{newConfigError(v, fieldName)}
}

func (e MissingRequiredField) Error() string {
	return fmt.Sprintf("%s is missing a required field: %s, a %s", e.ClassName, e.FieldName, e.FieldType)
}

// MalformedField is raised when a field parses to the right Go type but
// fails a semantic check (e.g. an invalid proxy URL).
type MalformedField struct {
	ConfigError
	Reason string
}

func NewMalformedField(v interface{}, fieldName, reason string) *MalformedField {
	return &MalformedField{newConfigError(v, fieldName), reason}
}

func (e MalformedField) Error() string {
	return fmt.Sprintf("in %s, %s field is malformed: %s", e.ClassName, e.FieldName, e.Reason)
}
