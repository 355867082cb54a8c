package schema

import (
	"fmt"
)

// DataTypeCode classifies an indexed member by the physical index table
// that stores its values.
//
// The set is closed. Unknown is the zero value and never routes to a table.
type DataTypeCode int

const (
	Unknown DataTypeCode = iota
	IntegerNumber
	FractalNumber
	Bool
	DateTime
	Guid
	String
	Enum
	Text
)

// AllDataTypeCodes lists every routable code in table order.
var AllDataTypeCodes = []DataTypeCode{
	IntegerNumber, FractalNumber, Bool, DateTime, Guid, String, Enum, Text,
}

var dataTypeNames = map[DataTypeCode]string{
	Unknown:       "Unknown",
	IntegerNumber: "IntegerNumber",
	FractalNumber: "FractalNumber",
	Bool:          "Bool",
	DateTime:      "DateTime",
	Guid:          "Guid",
	String:        "String",
	Enum:          "Enum",
	Text:          "Text",
}

func (c DataTypeCode) String() string {
	if name, ok := dataTypeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("DataTypeCode(%d)", int(c))
}

// ParseDataTypeCode parses names produced by String.
func ParseDataTypeCode(s string) (DataTypeCode, error) {
	for code, name := range dataTypeNames {
		if name == s && code != Unknown {
			return code, nil
		}
	}
	return Unknown, fmt.Errorf("unknown data type code %q", s)
}

// indexTableSuffixes maps each code to the suffix of its physical index table.
// String and Enum share a table; enums are stored as their string form.
var indexTableSuffixes = map[DataTypeCode]string{
	IntegerNumber: "Integers",
	FractalNumber: "Fractals",
	Bool:          "Booleans",
	DateTime:      "Dates",
	Guid:          "Guids",
	String:        "Strings",
	Enum:          "Strings",
	Text:          "Texts",
}

// IndexTableSuffix returns the table suffix for code.
func IndexTableSuffix(code DataTypeCode) (string, bool) {
	suffix, ok := indexTableSuffixes[code]
	return suffix, ok
}

// Orderable reports whether values of the code have a stable total order in SQL.
func (c DataTypeCode) Orderable() bool {
	_, ok := indexTableSuffixes[c]
	return ok
}
