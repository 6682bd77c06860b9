package resource

import (
	"fmt"
	"strings"
)

// DefaultNamespace is assumed when an identifier string carries no namespace.
const DefaultNamespace = "vanilla"

// ID is a namespaced identifier, rendered as "namespace:path".
type ID struct {
	Namespace string
	Path      string
}

// Parse splits "namespace:path" into an ID. A string without a colon gets
// the default namespace. The path must be non-empty.
func Parse(s string) (ID, error) {
	ns := DefaultNamespace
	path := s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		ns = s[:i]
		path = s[i+1:]
		if ns == "" {
			ns = DefaultNamespace
		}
	}
	if path == "" {
		return ID{}, fmt.Errorf("identifier %q: empty path", s)
	}
	if strings.IndexByte(path, ':') >= 0 {
		return ID{}, fmt.Errorf("identifier %q: path contains ':'", s)
	}
	return ID{Namespace: ns, Path: path}, nil
}

// MustParse is Parse for compile-time tables; it panics on malformed input.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// New builds an ID without parsing.
func New(namespace, path string) ID {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return ID{Namespace: namespace, Path: path}
}

func (id ID) String() string {
	return id.Namespace + ":" + id.Path
}

func (id ID) IsZero() bool {
	return id.Namespace == "" && id.Path == ""
}

// Compare orders by namespace, then path.
func (id ID) Compare(other ID) int {
	if c := strings.Compare(id.Namespace, other.Namespace); c != 0 {
		return c
	}
	return strings.Compare(id.Path, other.Path)
}

func (id ID) Less(other ID) bool {
	return id.Compare(other) < 0
}
