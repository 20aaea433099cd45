package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"foundation_site/internal/domain"
	"foundation_site/internal/storage"
)

// Gateway executes table-scoped reads and writes against Postgres.
type Gateway struct {
	db *sqlx.DB
}

func NewGateway(db *sqlx.DB) *Gateway {
	return &Gateway{db: db}
}

// Select scans the rows matched by q into dest, a pointer to a slice.
func (g *Gateway) Select(ctx context.Context, table string, q storage.Query, dest any) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if err := q.Validate(); err != nil {
		return err
	}
	if v := reflect.ValueOf(dest); v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("select %s: destination must be a pointer to a slice, got %T", table, dest)
	}

	query, args := buildSelect(table, q)
	if err := sqlx.SelectContext(ctx, executor(ctx, g.db), dest, query, args...); err != nil {
		return classify("select", table, err)
	}
	return nil
}

// Insert writes one row and returns its generated id.
func (g *Gateway) Insert(ctx context.Context, table string, values storage.Values) (string, error) {
	if err := checkTable(table); err != nil {
		return "", err
	}
	if err := storage.ValidateValues(values); err != nil {
		return "", err
	}

	cols := storage.SortedColumns(values)
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[c]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	var id string
	if err := sqlx.GetContext(ctx, executor(ctx, g.db), &id, query, args...); err != nil {
		return "", classify("insert", table, err)
	}
	return id, nil
}

// Update applies patch to the row with the given id.
func (g *Gateway) Update(ctx context.Context, table, id string, patch storage.Values) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if err := storage.ValidateValues(patch); err != nil {
		return err
	}

	cols := storage.SortedColumns(patch)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
		args = append(args, patch[c])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(sets, ", "), len(args))

	res, err := executor(ctx, g.db).ExecContext(ctx, query, args...)
	if err != nil {
		return classify("update", table, err)
	}
	return expectRow("update", table, id, res)
}

// Increment adds by to an integer column of one row in a single statement
// and returns the new value.
func (g *Gateway) Increment(ctx context.Context, table, id, column string, by int) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	if !storage.ValidIdentifier(column) {
		return 0, domain.Invalid("column", "invalid column %q", column)
	}

	query := fmt.Sprintf("UPDATE %s SET %s = %s + $1 WHERE id = $2 RETURNING %s", table, column, column, column)

	var value int64
	if err := sqlx.GetContext(ctx, executor(ctx, g.db), &value, query, by, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("increment %s %s: %w", table, id, domain.ErrNotFound)
		}
		return 0, classify("increment", table, err)
	}
	return value, nil
}

// Delete removes the row with the given id.
func (g *Gateway) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}

	res, err := executor(ctx, g.db).ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
	if err != nil {
		return classify("delete", table, err)
	}
	return expectRow("delete", table, id, res)
}

func buildSelect(table string, q storage.Query) (string, []any) {
	var sb strings.Builder
	var args []any

	fmt.Fprintf(&sb, "SELECT %s FROM %s", q.SelectList(), table)

	for i, f := range q.Filters {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		switch f.Op {
		case storage.OpEq:
			args = append(args, f.Value)
			fmt.Fprintf(&sb, "%s = $%d", f.Column, len(args))
		case storage.OpNeq:
			args = append(args, f.Value)
			fmt.Fprintf(&sb, "%s <> $%d", f.Column, len(args))
		case storage.OpIn:
			args = append(args, pq.Array(f.Value))
			fmt.Fprintf(&sb, "%s = ANY($%d)", f.Column, len(args))
		case storage.OpILike:
			args = append(args, f.Value)
			fmt.Fprintf(&sb, "%s ILIKE $%d", f.Column, len(args))
		case storage.OpIs:
			switch f.Value {
			case true:
				fmt.Fprintf(&sb, "%s IS TRUE", f.Column)
			case false:
				fmt.Fprintf(&sb, "%s IS FALSE", f.Column)
			default:
				fmt.Fprintf(&sb, "%s IS NULL", f.Column)
			}
		}
	}

	order := q.Ordering()
	direction := "ASC"
	if order.Desc {
		direction = "DESC"
	}
	fmt.Fprintf(&sb, " ORDER BY %s %s", order.Column, direction)

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	if q.ForUpdate {
		sb.WriteString(" FOR UPDATE")
	}

	return sb.String(), args
}

func checkTable(table string) error {
	if !storage.ValidIdentifier(table) {
		return domain.Invalid("resource", "invalid table %q", table)
	}
	return nil
}

func expectRow(op, table, id string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, table, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s %s: %w", op, table, id, domain.ErrNotFound)
	}
	return nil
}

// classify attaches a domain error kind to a driver error.
func classify(op, table string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", op, table, domain.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", op, table, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23":
			return fmt.Errorf("%s %s: %w: %s", op, table, domain.ErrConstraint, pqErr.Message)
		case "22":
			return fmt.Errorf("%s %s: %w: %s", op, table, domain.ErrValidation, pqErr.Message)
		case "40":
			// serialization failure or deadlock: safe to run again
			return fmt.Errorf("%s %s: %w: %w", op, table, domain.ErrTransport, err)
		case "08", "53", "57":
			return fmt.Errorf("%s %s: %w: %w", op, table, domain.ErrTransport, err)
		}
		return fmt.Errorf("%s %s: %w", op, table, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s %s: %w: %w", op, table, domain.ErrTransport, err)
	}

	return fmt.Errorf("%s %s: %w", op, table, err)
}
