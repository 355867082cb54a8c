package schema

import (
	"errors"
	"fmt"
)

// DataTypeRoutingError reports a StructureIndex whose data type has no
// physical table. It indicates an internal invariant violation.
type DataTypeRoutingError struct {
	Schema   string
	DataType DataTypeCode
}

func (e *DataTypeRoutingError) Error() string {
	return fmt.Sprintf("DATA_TYPE_ROUTING: no index table for %s in schema %s", e.DataType, e.Schema)
}

// BuildError reports a type that cannot be mapped to a structure schema.
type BuildError struct {
	Type    string
	Path    string
	Message string
}

func (e *BuildError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("build schema %s: %s: %s", e.Type, e.Path, e.Message)
	}
	return fmt.Sprintf("build schema %s: %s", e.Type, e.Message)
}

// TableNameCollisionError reports two distinct document types whose
// derived table names would be the same.
type TableNameCollisionError struct {
	Name     string
	Existing string
	Incoming string
}

func (e *TableNameCollisionError) Error() string {
	return fmt.Sprintf("table name collision for %s: %s already registered, cannot register %s",
		e.Name, e.Existing, e.Incoming)
}

// IsDataTypeRoutingError returns true if err is a DataTypeRoutingError.
func IsDataTypeRoutingError(err error) bool {
	var re *DataTypeRoutingError
	return errors.As(err, &re)
}
