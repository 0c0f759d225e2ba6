// Package schema describes the typed shape of documents indexed by the
// engine: a mapping from dotted property paths to scalar or array types,
// flattened from arbitrarily nested schema literals.
package schema

import (
	"sort"

	apperrors "github.com/lucid-search/lucid/pkg/errors"
)

// Type is one of the scalar or array field types a schema path may hold.
type Type string

const (
	TypeString      Type = "string"
	TypeNumber      Type = "number"
	TypeBoolean     Type = "boolean"
	TypeStringArray Type = "string[]"
	TypeNumberArray Type = "number[]"
	TypeBoolArray   Type = "boolean[]"
)

// IsArray reports whether t is one of the array element types.
func (t Type) IsArray() bool {
	switch t {
	case TypeStringArray, TypeNumberArray, TypeBoolArray:
		return true
	default:
		return false
	}
}

// Scalar returns the element type for an array type, or t itself for a
// scalar type.
func (t Type) Scalar() Type {
	switch t {
	case TypeStringArray:
		return TypeString
	case TypeNumberArray:
		return TypeNumber
	case TypeBoolArray:
		return TypeBoolean
	default:
		return t
	}
}

// Literal is the user-facing schema description: each value is either a
// Type (as a string or Type), or a nested Literal for a sub-object.
type Literal map[string]any

// Flattened is a schema reduced to dotted-path -> Type, plus array-of-object
// paths rejected at construction time.
type Flattened map[string]Type

// Flatten walks a nested Literal and produces a Flattened schema, or an
// INVALID_SCHEMA_TYPE error if a leaf is not a recognized scalar/array
// type or an array of nested objects is encountered.
func Flatten(lit Literal) (Flattened, error) {
	out := make(Flattened)
	if err := flatten(lit, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(lit Literal, prefix string, out Flattened) error {
	for key, val := range lit {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := val.(type) {
		case Literal:
			if err := flatten(v, path, out); err != nil {
				return err
			}
		case map[string]any:
			if err := flatten(Literal(v), path, out); err != nil {
				return err
			}
		case Type:
			if !validLeafType(v) {
				return apperrors.Newf(apperrors.CodeInvalidSchemaType,
					"property %q has unsupported type %q", path, v)
			}
			out[path] = v
		case string:
			t := Type(v)
			if !validLeafType(t) {
				return apperrors.Newf(apperrors.CodeInvalidSchemaType,
					"property %q has unsupported type %q", path, v)
			}
			out[path] = t
		default:
			return apperrors.Newf(apperrors.CodeInvalidSchemaType,
				"property %q has unsupported declaration %v", path, val)
		}
	}
	return nil
}

func validLeafType(t Type) bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeStringArray, TypeNumberArray, TypeBoolArray:
		return true
	default:
		return false
	}
}

// StringPaths returns every path typed string or string[], sorted for
// deterministic iteration (used when a search restricts to "all string
// properties").
func (f Flattened) StringPaths() []string {
	var paths []string
	for p, t := range f {
		if t == TypeString || t == TypeStringArray {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// SortablePaths returns every scalar (non-array) path, minus the given
// unsortable set, sorted for determinism. Array types are never sortable.
func (f Flattened) SortablePaths(unsortable map[string]struct{}) []string {
	var paths []string
	for p, t := range f {
		if t.IsArray() {
			continue
		}
		if _, excluded := unsortable[p]; excluded {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Validate confirms every path in unsortable exists in f and is scalar;
// used to build the sorter's configuration at Create time.
func (f Flattened) Validate(unsortable []string) error {
	for _, p := range unsortable {
		t, ok := f[p]
		if !ok {
			return apperrors.Newf(apperrors.CodeInvalidSortSchemaType,
				"unsortable property %q is not present in schema", p)
		}
		if t.IsArray() {
			return apperrors.Newf(apperrors.CodeInvalidSortSchemaType,
				"property %q is an array type and cannot be (un)sortable", p)
		}
	}
	return nil
}

// String implements fmt.Stringer for debugging/log output.
func (t Type) String() string { return string(t) }
