package schema

import "sort"

// Tables holds the physical table names of one structure set.
// Names derive only from the schema name, so two schemas collide
// exactly when their names do; Provider rejects that case.
type Tables struct {
	schema     string
	Structures string
	Uniques    string
	indexes    map[DataTypeCode]string
}

// NewTables derives the table names for a schema name.
func NewTables(name string) Tables {
	t := Tables{
		schema:     name,
		Structures: name + "Structures",
		Uniques:    name + "Uniques",
		indexes:    make(map[DataTypeCode]string, len(indexTableSuffixes)),
	}
	for code, suffix := range indexTableSuffixes {
		t.indexes[code] = name + suffix
	}
	return t
}

// IndexTable returns the index table that stores values of code.
func (t Tables) IndexTable(code DataTypeCode) (string, error) {
	name, ok := t.indexes[code]
	if !ok {
		return "", &DataTypeRoutingError{Schema: t.schema, DataType: code}
	}
	return name, nil
}

// IndexTables returns the distinct index table names, sorted.
func (t Tables) IndexTables() []string {
	seen := make(map[string]bool, len(t.indexes))
	var out []string
	for _, name := range t.indexes {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// All returns structures, uniques and the index tables.
func (t Tables) All() []string {
	return append([]string{t.Structures, t.Uniques}, t.IndexTables()...)
}
