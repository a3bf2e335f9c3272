package pgstore

import (
	"fmt"
	"sort"

	"domino-community/internal/gateway"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// BuildSelect compiles q against collection. Identifiers are checked against
// the collection schema before they reach the SQL text.
func BuildSelect(collection gateway.Collection, q gateway.Query) (string, []any, error) {
	if err := q.Validate(collection); err != nil {
		return "", nil, err
	}

	columns := q.Columns
	if len(columns) == 0 {
		columns = []string{"*"}
	}

	b := psql.Select(columns...).From(collection.String())
	for _, f := range q.Filters {
		cond, err := condition(f)
		if err != nil {
			return "", nil, err
		}
		b = b.Where(cond)
	}
	for _, o := range q.Order {
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		b = b.OrderBy(o.Column + " " + dir)
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	return b.ToSql()
}

func BuildCount(collection gateway.Collection, filters []gateway.Filter) (string, []any, error) {
	if !collection.IsValid() {
		return "", nil, fmt.Errorf("unknown collection %q", collection)
	}
	if err := gateway.ValidateFilters(collection, filters); err != nil {
		return "", nil, err
	}

	b := psql.Select("COUNT(*)").From(collection.String())
	for _, f := range filters {
		cond, err := condition(f)
		if err != nil {
			return "", nil, err
		}
		b = b.Where(cond)
	}
	return b.ToSql()
}

// BuildInsert renders one row insert returning the stored row.
func BuildInsert(collection gateway.Collection, record gateway.Record) (string, []any, error) {
	if !collection.IsValid() {
		return "", nil, fmt.Errorf("unknown collection %q", collection)
	}

	columns := make([]string, 0, len(record))
	for col := range record {
		if !collection.HasColumn(col) {
			return "", nil, fmt.Errorf("unknown column %s.%s", collection, col)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	values := make([]any, len(columns))
	for i, col := range columns {
		values[i] = record[col]
	}

	return psql.Insert(collection.String()).
		Columns(columns...).
		Values(values...).
		Suffix("RETURNING *").
		ToSql()
}

func condition(f gateway.Filter) (sq.Sqlizer, error) {
	switch f.Op {
	case gateway.OpEq:
		return sq.Eq{f.Column: f.Value}, nil
	case gateway.OpNeq:
		return sq.NotEq{f.Column: f.Value}, nil
	case gateway.OpIn:
		list, ok := f.Value.([]any)
		if !ok {
			return nil, fmt.Errorf("in filter on %s expects a list", f.Column)
		}
		return sq.Eq{f.Column: list}, nil
	case gateway.OpILike:
		return sq.ILike{f.Column: f.Value}, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", f.Op)
}
