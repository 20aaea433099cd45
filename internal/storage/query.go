// Package storage holds the table-scoped query model shared by the
// persistence gateways.
package storage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"foundation_site/internal/domain"
)

// Values maps column names to the values written for them.
type Values map[string]any

type Op string

const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpIn    Op = "in"
	OpILike Op = "ilike"
	OpIs    Op = "is"
)

type Filter struct {
	Column string `json:"column"`
	Op     Op     `json:"op"`
	Value  any    `json:"value"`
}

type Order struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc"`
}

// Query describes a read of one table.
type Query struct {
	Columns []string `json:"columns,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
	Order   *Order   `json:"order,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Offset  int      `json:"offset,omitempty"`
	// ForUpdate locks the selected rows until the surrounding transaction
	// ends. Gateways without row locks ignore it.
	ForUpdate bool `json:"for_update,omitempty"`
}

// DefaultOrder is applied when a query names no ordering.
var DefaultOrder = Order{Column: "created_at", Desc: true}

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to use as a table or column.
func ValidIdentifier(name string) bool {
	return identifier.MatchString(name)
}

// Where returns a copy of q with an equality filter appended.
func (q Query) Where(column string, value any) Query {
	return q.Filter(column, OpEq, value)
}

// Filter returns a copy of q with a filter appended.
func (q Query) Filter(column string, op Op, value any) Query {
	out := q
	out.Filters = append(append([]Filter(nil), q.Filters...), Filter{Column: column, Op: op, Value: value})
	return out
}

// OrderBy returns a copy of q ordered by column.
func (q Query) OrderBy(column string, desc bool) Query {
	out := q
	out.Order = &Order{Column: column, Desc: desc}
	return out
}

// Page returns a copy of q limited to one page.
func (q Query) Page(limit, offset int) Query {
	out := q
	out.Limit = limit
	out.Offset = offset
	return out
}

// Locked returns a copy of q that locks the rows it reads.
func (q Query) Locked() Query {
	out := q
	out.ForUpdate = true
	return out
}

// Ordering returns the effective ordering of q.
func (q Query) Ordering() Order {
	if q.Order == nil {
		return DefaultOrder
	}
	return *q.Order
}

// Validate checks every identifier and operator used by q.
func (q Query) Validate() error {
	for _, c := range q.Columns {
		if !ValidIdentifier(c) {
			return domain.Invalid("select", "invalid column %q", c)
		}
	}
	for _, f := range q.Filters {
		if !ValidIdentifier(f.Column) {
			return domain.Invalid("filter", "invalid column %q", f.Column)
		}
		switch f.Op {
		case OpEq, OpNeq, OpIn, OpILike, OpIs:
		default:
			return domain.Invalid("filter", "unsupported operator %q", f.Op)
		}
	}
	if !ValidIdentifier(q.Ordering().Column) {
		return domain.Invalid("order", "invalid column %q", q.Ordering().Column)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return domain.Invalid("range", "limit and offset must not be negative")
	}
	return nil
}

// Key returns a canonical encoding of q. Two queries selecting the same rows
// in the same order produce the same key.
func (q Query) Key() string {
	canon := q
	canon.Columns = append([]string(nil), q.Columns...)
	sort.Strings(canon.Columns)
	canon.Filters = append([]Filter(nil), q.Filters...)
	sort.SliceStable(canon.Filters, func(i, j int) bool {
		if canon.Filters[i].Column != canon.Filters[j].Column {
			return canon.Filters[i].Column < canon.Filters[j].Column
		}
		return canon.Filters[i].Op < canon.Filters[j].Op
	})
	order := q.Ordering()
	canon.Order = &order

	data, err := json.Marshal(canon)
	if err != nil {
		return fmt.Sprintf("%+v", canon)
	}
	return string(data)
}

// ValidateValues checks that v is a non-empty record keyed by column names.
func ValidateValues(v Values) error {
	if len(v) == 0 {
		return domain.Invalid("record", "must contain at least one field")
	}
	for k := range v {
		if !ValidIdentifier(k) {
			return domain.Invalid("record", "invalid field name %q", k)
		}
	}
	return nil
}

// SortedColumns returns the keys of v in a stable order.
func SortedColumns(v Values) []string {
	cols := make([]string, 0, len(v))
	for k := range v {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// SelectList renders the projection of q.
func (q Query) SelectList() string {
	if len(q.Columns) == 0 {
		return "*"
	}
	return strings.Join(q.Columns, ", ")
}
