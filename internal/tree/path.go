package tree

import (
	"strings"
	"unicode/utf8"
)

// RootName is the label of the synthetic breadcrumb entry for the root.
const RootName = "Home"

// JoinPath builds the materialized path of a child. parentPath is empty for the root.
func JoinPath(parentPath, name string) string {
	return parentPath + "/" + name
}

// ValidateName rejects names that would break the materialized path or that the
// database cannot store.
func ValidateName(name string) error {
	switch {
	case !storable(name):
		return invalid("name must be valid UTF-8 without NUL characters")
	case strings.TrimSpace(name) == "":
		return invalid("name is required")
	case strings.Contains(name, "/"):
		return invalid("name %q must not contain '/'", name)
	case name == "." || name == "..":
		return invalid("name %q is reserved", name)
	}
	return nil
}

// storable reports whether s fits in a Postgres text column.
func storable(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// escapeLike makes s match literally inside a LIKE pattern with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
