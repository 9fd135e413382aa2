package shared

import (
	"fmt"
	"strings"
)

// Visibility controls whether soft-deleted rows are returned.
type Visibility int

const (
	// VisibleOnly hides rows flagged removed.
	VisibleOnly Visibility = iota
	// IncludeRemoved returns removed rows as well, for history lookups.
	IncludeRemoved
)

// Scope is the ownership and visibility filter every repository query starts from.
type Scope struct {
	OwnerID    int64
	Visibility Visibility
}

// OwnedBy returns the default scope for an identity.
func OwnedBy(id Identity) Scope {
	return Scope{OwnerID: id.UserID}
}

// WithRemoved returns a copy of the scope that includes removed rows.
func (s Scope) WithRemoved() Scope {
	s.Visibility = IncludeRemoved
	return s
}

// Conditions accumulates positional SQL predicates.
type Conditions struct {
	clauses []string
	args    []any
}

// NewConditions seeds predicates with the scope for the table alias.
func NewConditions(scope Scope, alias string) *Conditions {
	c := &Conditions{}
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	c.Add(col("created_by")+" = %s", scope.OwnerID)
	if scope.Visibility == VisibleOnly {
		c.Raw("NOT " + col("removed"))
	}
	return c
}

// Add appends a predicate. The format must contain exactly one %s which is
// replaced by the next positional placeholder.
func (c *Conditions) Add(format string, arg any) *Conditions {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(format, fmt.Sprintf("$%d", len(c.args))))
	return c
}

// Raw appends a predicate without arguments.
func (c *Conditions) Raw(clause string) *Conditions {
	c.clauses = append(c.clauses, clause)
	return c
}

// Bind appends an argument and returns its placeholder, for use outside WHERE.
func (c *Conditions) Bind(arg any) string {
	c.args = append(c.args, arg)
	return fmt.Sprintf("$%d", len(c.args))
}

// Search appends a case-insensitive substring match of term against any of
// the columns. LIKE wildcards in term match literally.
func (c *Conditions) Search(term string, columns ...string) *Conditions {
	p := c.Bind(ContainsPattern(term))
	matches := make([]string, 0, len(columns))
	for _, col := range columns {
		matches = append(matches, col+" ILIKE "+p+` ESCAPE '\'`)
	}
	return c.Raw("(" + strings.Join(matches, " OR ") + ")")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ContainsPattern builds a LIKE pattern matching term anywhere in a value,
// escaping backslash, percent and underscore.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// Where renders the WHERE clause.
func (c *Conditions) Where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(c.clauses, " AND ")
}

// Args returns the positional arguments in order.
func (c *Conditions) Args() []any {
	return c.args
}
