package object

import (
	"errors"
	"fmt"
)

// ErrUnknownType is returned when a label does not name one of the object types.
var ErrUnknownType = errors.New("unknown object type")

// Type identifies the kind of object stored. The zero value is not a valid type.
type Type uint8

const (
	TypeBlob Type = iota + 1
	TypeTree
	TypeTag
	TypeCommit
)

// Types lists every valid object type in label order.
var Types = []Type{TypeBlob, TypeTree, TypeTag, TypeCommit}

// String returns the label used verbatim in the framed representation.
func (t Type) String() string {
	switch t {
	case TypeBlob:
		return "blob"
	case TypeTree:
		return "tree"
	case TypeTag:
		return "tag"
	case TypeCommit:
		return "commit"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Valid reports whether t is one of the four object types.
func (t Type) Valid() bool {
	switch t {
	case TypeBlob, TypeTree, TypeTag, TypeCommit:
		return true
	}
	return false
}

// ParseType resolves an object type label such as "blob".
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownType, s)
}
