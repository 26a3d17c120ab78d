package metadata

// Kind is the built-in kind of a property type
type Kind string

const (
	KindString   Kind = "string"
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindBool     Kind = "bool"
	KindUUID     Kind = "uuid"
	KindDateTime Kind = "datetime"
	KindObject   Kind = "object"
	KindArray    Kind = "array"
	KindMap      Kind = "map"
	KindAny      Kind = "any"
)

// Type describes the built-in type of a property
type Type struct {
	Kind     Kind          `json:"kind" yaml:"kind"`
	Nullable bool          `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Class    ResourceClass `json:"class,omitempty" yaml:"class,omitempty"`
	// Elem is the element type of arrays and maps
	Elem *Type `json:"elem,omitempty" yaml:"elem,omitempty"`
}

// IsResource reports whether the type points at another resource class
func (t Type) IsResource() bool {
	return t.Kind == KindObject && t.Class != ""
}

// Leaf returns the innermost element type of arrays and maps
func (t Type) Leaf() Type {
	for t.Elem != nil && (t.Kind == KindArray || t.Kind == KindMap) {
		t = *t.Elem
	}
	return t
}

// String returns a compact representation such as "?[]int" or "object<Book>"
func (t Type) String() string {
	s := ""
	if t.Nullable {
		s = "?"
	}
	switch {
	case t.Kind == KindArray && t.Elem != nil:
		return s + "[]" + t.Elem.String()
	case t.Kind == KindMap && t.Elem != nil:
		return s + "map<" + t.Elem.String() + ">"
	case t.IsResource():
		return s + "object<" + t.Class.LocalName() + ">"
	}
	return s + string(t.Kind)
}

func cloneTypes(types []Type) []Type {
	if types == nil {
		return nil
	}
	out := make([]Type, len(types))
	for i, t := range types {
		out[i] = t.clone()
	}
	return out
}

func (t Type) clone() Type {
	if t.Elem != nil {
		elem := t.Elem.clone()
		t.Elem = &elem
	}
	return t
}
