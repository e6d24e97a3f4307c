package schema

import "strings"

// Family groups the semantic type names a schema may declare
type Family int

const (
	FamilyString Family = iota
	FamilyInt
	FamilyFloat
	FamilyDate
	FamilyBool
)

var typeNames = map[string]Family{
	"str":            FamilyString,
	"string":         FamilyString,
	"object":         FamilyString,
	"int":            FamilyInt,
	"int32":          FamilyInt,
	"int64":          FamilyInt,
	"integer":        FamilyInt,
	"float":          FamilyFloat,
	"float32":        FamilyFloat,
	"float64":        FamilyFloat,
	"double":         FamilyFloat,
	"number":         FamilyFloat,
	"date":           FamilyDate,
	"datetime":       FamilyDate,
	"datetime64":     FamilyDate,
	"datetime64[ns]": FamilyDate,
	"timestamp":      FamilyDate,
	"bool":           FamilyBool,
	"boolean":        FamilyBool,
}

// ParseType resolves a semantic type name; matching is case-insensitive so "Int64" is an int
func ParseType(name string) (Family, bool) {
	f, ok := typeNames[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// String returns the canonical name of the family
func (f Family) String() string {
	switch f {
	case FamilyInt:
		return "int"
	case FamilyFloat:
		return "float"
	case FamilyDate:
		return "date"
	case FamilyBool:
		return "bool"
	default:
		return "string"
	}
}
