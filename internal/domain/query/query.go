// Package query implements the external Query collaborator: a fluent
// builder for find/count/sum criteria, plus the GroupByType split the
// Document Engine uses to separate filters from selections and paging.
package query

// Method is a query method name such as "equal", "limit", "select".
type Method string

const (
	MethodEqual      Method = "equal"
	MethodNotEqual   Method = "notEqual"
	MethodLessThan   Method = "lessThan"
	MethodGreaterThan Method = "greaterThan"
	MethodSelect     Method = "select"
	MethodLimit      Method = "limit"
	MethodOffset     Method = "offset"
	MethodOrderAsc   Method = "orderAsc"
	MethodOrderDesc  Method = "orderDesc"
	MethodCursorAfter  Method = "cursorAfter"
	MethodCursorBefore Method = "cursorBefore"
)

// Query is a single query criterion: a method, the attribute it targets
// (empty for paging/limit methods), and its operand values.
type Query struct {
	method    Method
	attribute string
	values    []any
}

// New builds a Query targeting attribute with the given method and values.
func New(method Method, attribute string, values ...any) Query {
	return Query{method: method, attribute: attribute, values: values}
}

func (q Query) GetMethod() Method     { return q.method }
func (q Query) GetAttribute() string  { return q.attribute }
func (q Query) GetValues() []any      { return q.values }

// SetValues returns a copy of q with its operand values replaced — used by
// the Query Normalizer to rewrite datetime literals in place.
func (q Query) SetValues(values []any) Query {
	q.values = values
	return q
}

// Equal builds an equality filter query.
func Equal(attribute string, value any) Query { return New(MethodEqual, attribute, value) }

// Limit builds a paging-limit query.
func Limit(n int) Query { return New(MethodLimit, "", n) }

// Offset builds a paging-offset query.
func Offset(n int) Query { return New(MethodOffset, "", n) }

// Select builds a selection query naming one attribute to project.
func Select(attribute string) Query { return New(MethodSelect, attribute) }

// Grouped is the result of GroupByType: queries partitioned by concern, the
// shape the Document Engine's find() operates on directly.
type Grouped struct {
	Filters         []Query
	Selections      []string
	Limit           int
	Offset          int
	OrderAttributes []string
	OrderTypes      []string // aligned with OrderAttributes, "ASC" or "DESC"
	Cursor          string
	CursorDirection string // "before" or "after"
}

// GroupByType partitions a flat query list into the shape find() consumes.
// Unset Limit defaults to 25, unset CursorDirection defaults to "after" —
// the Document Engine's documented defaults, applied here so every caller
// of GroupByType observes the same defaults.
func GroupByType(queries []Query) Grouped {
	g := Grouped{Limit: 25, CursorDirection: "after"}
	for _, q := range queries {
		switch q.method {
		case MethodSelect:
			g.Selections = append(g.Selections, q.attribute)
		case MethodLimit:
			if len(q.values) > 0 {
				if n, ok := q.values[0].(int); ok {
					g.Limit = n
				}
			}
		case MethodOffset:
			if len(q.values) > 0 {
				if n, ok := q.values[0].(int); ok {
					g.Offset = n
				}
			}
		case MethodOrderAsc:
			g.OrderAttributes = append(g.OrderAttributes, q.attribute)
			g.OrderTypes = append(g.OrderTypes, "ASC")
		case MethodOrderDesc:
			g.OrderAttributes = append(g.OrderAttributes, q.attribute)
			g.OrderTypes = append(g.OrderTypes, "DESC")
		case MethodCursorAfter:
			if len(q.values) > 0 {
				if s, ok := q.values[0].(string); ok {
					g.Cursor = s
				}
			}
			g.CursorDirection = "after"
		case MethodCursorBefore:
			if len(q.values) > 0 {
				if s, ok := q.values[0].(string); ok {
					g.Cursor = s
				}
			}
			g.CursorDirection = "before"
		default:
			g.Filters = append(g.Filters, q)
		}
	}
	return g
}
