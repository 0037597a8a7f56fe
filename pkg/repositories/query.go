package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/database"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

// querier fetches the connection (or open transaction) for this request.
func querier(ctx context.Context) (database.Querier, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve querier: %w", err)
	}
	return q, nil
}

// listQuery describes one paginated read: the selected columns, a function
// that applies FROM/JOIN/WHERE to a builder, and the mapping from public sort
// fields to SQL expressions.
type listQuery struct {
	columns  []string
	apply    func(sb *sqlbuilder.SelectBuilder)
	sortable map[string]string
	tiebreak string
}

// build returns the page statement and the matching count statement.
// opts must already be normalized, so OrderBy is a key of sortable.
func (lq listQuery) build(opts models.ListOptions) (string, []any, string, []any) {
	page := sqlbuilder.PostgreSQL.NewSelectBuilder()
	page.Select(lq.columns...)
	lq.apply(page)

	orderExpr := lq.sortable[opts.OrderBy]
	orderBy := []string{orderExpr + " " + strings.ToUpper(opts.OrderDirection)}
	if lq.tiebreak != "" {
		orderBy = append(orderBy, lq.tiebreak)
	}
	page.OrderBy(orderBy...)
	page.Limit(opts.Limit)
	page.Offset(opts.Offset)

	count := sqlbuilder.PostgreSQL.NewSelectBuilder()
	count.Select("COUNT(*)")
	lq.apply(count)

	pageSQL, pageArgs := page.Build()
	countSQL, countArgs := count.Build()
	return pageSQL, pageArgs, countSQL, countArgs
}

// sortKeys returns the public sort fields of a sortable map.
func sortKeys(sortable map[string]string) []string {
	keys := make([]string, 0, len(sortable))
	for k := range sortable {
		keys = append(keys, k)
	}
	return keys
}

// normalizeList validates opts for a sortable map and wraps failures as validation errors.
func normalizeList(opts models.ListOptions, defaultOrder string, sortable map[string]string) (models.ListOptions, error) {
	normalized, err := opts.Normalize(defaultOrder, sortKeys(sortable)...)
	if err != nil {
		return opts, validationError(err)
	}
	return normalized, nil
}

// countRows runs a COUNT(*) statement.
func countRows(ctx context.Context, q database.Querier, query string, args []any) (int, error) {
	var total int
	if err := q.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// qualify prefixes every column with alias.
func qualify(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}

// cols joins column names for hand-written statements.
func cols(columns []string) string {
	return strings.Join(columns, ", ")
}

// rowExists reports whether table has a row with the given id.
// table is always a compile-time constant from this package.
func rowExists(ctx context.Context, q database.Querier, table string, id any) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table), id).Scan(&exists)
	if err != nil {
		return false, apperrors.FromPg("check "+table, err)
	}
	return exists, nil
}
