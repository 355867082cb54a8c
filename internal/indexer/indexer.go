// Package indexer extracts the typed index values and unique-constraint
// values of documents.
//
// Extraction keeps every DataTypeCode as declared. String and Enum values
// end up in the same physical table, but they are only merged when the
// insertion orchestrator groups a batch.
package indexer

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/schema"
)

// StructureIndex is one indexable member occurrence. Value is already in
// storage form (see schema.StorageValue) and never nil.
type StructureIndex struct {
	StructureID ids.StructureID
	Path        string
	DataType    schema.DataTypeCode
	Value       any
}

// UniqueValue is the value of one unique member, rendered as text.
type UniqueValue struct {
	StructureID ids.StructureID
	Path        string
	Value       string
}

// UniqueConstraintViolatedError reports two documents of one batch sharing
// a unique member value.
type UniqueConstraintViolatedError struct {
	Schema string
	Path   string
	Value  string
	First  ids.StructureID
	Second ids.StructureID
}

func (e *UniqueConstraintViolatedError) Error() string {
	return fmt.Sprintf("UNIQUE_CONSTRAINT_VIOLATED: %s.%s = %q is used by structures %s and %s",
		e.Schema, e.Path, e.Value, e.First, e.Second)
}

// IsUniqueConstraintViolatedError returns true if err is a UniqueConstraintViolatedError.
func IsUniqueConstraintViolatedError(err error) bool {
	var ue *UniqueConstraintViolatedError
	return errors.As(err, &ue)
}

// MissingUniqueValueError reports a unique member that is null.
type MissingUniqueValueError struct {
	Schema      string
	Path        string
	StructureID ids.StructureID
}

func (e *MissingUniqueValueError) Error() string {
	return fmt.Sprintf("unique member %s.%s is null in structure %s", e.Schema, e.Path, e.StructureID)
}

// Extract returns every index value of doc: nothing for null members, one
// entry per scalar and one per element of a collection member. Entries are
// ordered by member path, then by occurrence.
func Extract(s *schema.StructureSchema, id ids.StructureID, doc any) ([]StructureIndex, error) {
	var out []StructureIndex
	for _, f := range s.IndexedFields() {
		if _, err := s.Tables.IndexTable(f.DataType); err != nil {
			return nil, err
		}
		for _, v := range f.Values(doc) {
			sv, err := schema.StorageValue(f.DataType, v)
			if err != nil {
				return nil, fmt.Errorf("extract %s.%s: %w", s.Name, f.Path, err)
			}
			if sv == nil {
				continue
			}
			out = append(out, StructureIndex{StructureID: id, Path: f.Path, DataType: f.DataType, Value: sv})
		}
	}
	return out, nil
}

// ExtractUniques returns exactly one value per unique member of doc.
func ExtractUniques(s *schema.StructureSchema, id ids.StructureID, doc any) ([]UniqueValue, error) {
	var out []UniqueValue
	for _, f := range s.UniqueFields() {
		values := f.Values(doc)
		var sv any
		if len(values) > 0 {
			var err error
			sv, err = schema.StorageValue(f.DataType, values[0])
			if err != nil {
				return nil, fmt.Errorf("extract unique %s.%s: %w", s.Name, f.Path, err)
			}
		}
		if sv == nil {
			return nil, &MissingUniqueValueError{Schema: s.Name, Path: f.Path, StructureID: id}
		}
		out = append(out, UniqueValue{StructureID: id, Path: f.Path, Value: UniqueText(sv)})
	}
	return out, nil
}

// UniqueText renders a storage value as the text stored in the uniques table.
func UniqueText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// CheckBatchUniques fails on the first unique value shared by two
// structures of the batch.
func CheckBatchUniques(s *schema.StructureSchema, batch [][]UniqueValue) error {
	seen := make(map[string]map[string]ids.StructureID)
	for _, doc := range batch {
		for _, u := range doc {
			byValue, ok := seen[u.Path]
			if !ok {
				byValue = make(map[string]ids.StructureID)
				seen[u.Path] = byValue
			}
			if first, ok := byValue[u.Value]; ok {
				return &UniqueConstraintViolatedError{
					Schema: s.Name,
					Path:   u.Path,
					Value:  u.Value,
					First:  first,
					Second: u.StructureID,
				}
			}
			byValue[u.Value] = u.StructureID
		}
	}
	return nil
}
