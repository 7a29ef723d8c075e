// Handles column schema derivation and compatibility checks for file headers.

package docdb

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// columnType represents the storage type of a document field.
type columnType string

const (
	columnTypeText     columnType = "text"
	columnTypeNumber   columnType = "number"
	columnTypeBool     columnType = "bool"
	columnTypeDate     columnType = "date"
	columnTypeBlob     columnType = "blob"
	columnTypeID       columnType = "id"
	columnTypeRelation columnType = "relation"
	columnTypeJSONB    columnType = "jsonb"
)

// Column describes one top-level field of a document type.
type Column struct {
	Name        string     `json:"name"`
	Type        columnType `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Description string     `json:"description,omitempty"`
}

var errColumnName = errors.New("column name is required")

// relationMarker is implemented by every Relation instantiation.
type relationMarker interface{ isRelation() }

func (Relation[T]) isRelation() {}

var (
	idType       = reflect.TypeFor[ID]()
	timeType     = reflect.TypeFor[time.Time]()
	relationType = reflect.TypeFor[relationMarker]()
)

// Schema returns the columns of document type T, in field order.
//
// It uses github.com/invopop/jsonschema to extract field descriptions from
// `jsonschema:"description=..."` tags and required fields from the schema.
func Schema[T any]() ([]Column, error) {
	t := reflect.TypeFor[T]()
	switch t.Kind() {
	case reflect.Pointer:
		if t.Elem().Kind() != reflect.Struct {
			return nil, fmt.Errorf("type must be a struct or pointer to struct, got %s", t.Kind())
		}
		t = t.Elem()
	case reflect.Struct:
	default:
		return nil, fmt.Errorf("type must be a struct or pointer to struct, got %s", t.Kind())
	}

	// Inline properties (no $ref) so the property list is flat.
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	schema := r.ReflectFromType(t)

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}
	fields := make(map[string]reflect.Type)
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if name := jsonFieldName(&f); name != "-" {
			if _, ok := fields[name]; !ok {
				fields[name] = f.Type
			}
		}
	}

	var columns []Column
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		colType := columnTypeText
		if ft, ok := fields[pair.Key]; ok {
			colType = goTypeToColumnType(ft)
		}
		columns = append(columns, Column{
			Name:        pair.Key,
			Type:        colType,
			Required:    required[pair.Key],
			Description: pair.Value.Description,
		})
	}
	return columns, nil
}

// checkColumns verifies that rows written with stored columns can be decoded
// into the current document type. Added or removed columns are tolerated; a
// column whose type changed is not.
func checkColumns(stored, current []Column) error {
	byName := make(map[string]columnType, len(current))
	for _, c := range current {
		byName[c.Name] = c.Type
	}
	var errs []error
	for i, c := range stored {
		if c.Name == "" {
			return fmt.Errorf("column %d: %w", i, errColumnName)
		}
		if t, ok := byName[c.Name]; ok && t != c.Type {
			errs = append(errs, fmt.Errorf("column %q: stored as %s, now %s", c.Name, c.Type, t))
		}
	}
	if len(errs) != 0 {
		return fmt.Errorf("%w: %w", ErrSchemaMismatch, errors.Join(errs...))
	}
	return nil
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(field *reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "-"
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

// goTypeToColumnType maps Go types to column types.
func goTypeToColumnType(t reflect.Type) columnType {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case t == idType:
		return columnTypeID
	case t == timeType:
		return columnTypeDate
	case t.Implements(relationType):
		return columnTypeRelation
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		return columnTypeBlob
	}
	switch t.Kind() { //nolint:exhaustive // Other kinds default to jsonb or text
	case reflect.String:
		return columnTypeText
	case reflect.Bool:
		return columnTypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return columnTypeNumber
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map:
		return columnTypeJSONB
	default:
		return columnTypeText
	}
}
