package mariadb

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

var mysql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// identifierPattern limits table and column names taken from configuration.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// RosterMapping names the table and columns holding person records.
type RosterMapping struct {
	Table      string
	NameColumn string
	CodeColumn string
}

// Validate rejects identifiers that cannot be safely quoted into SQL.
func (m RosterMapping) Validate() error {
	for label, ident := range map[string]string{"table": m.Table, "name column": m.NameColumn, "code column": m.CodeColumn} {
		if !identifierPattern.MatchString(ident) {
			return fmt.Errorf("invalid roster %s %q", label, ident)
		}
	}
	return nil
}

// RosterEntry is one person in the external roster.
type RosterEntry struct {
	Name string
	Code string
}

func quote(ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = "`" + p + "`"
	}
	return strings.Join(parts, ".")
}

// rosterQuery builds the SELECT for a mapping. Rows with an empty code are skipped.
func rosterQuery(m RosterMapping) (string, []any, error) {
	if err := m.Validate(); err != nil {
		return "", nil, err
	}
	code := quote(m.CodeColumn)
	return mysql.Select(quote(m.NameColumn), code).
		From(quote(m.Table)).
		Where(sq.And{sq.NotEq{code: nil}, sq.NotEq{code: ""}}).
		OrderBy(code).
		ToSql()
}

// ListRoster returns every roster person ordered by code.
func (p *Pool) ListRoster(ctx context.Context, m RosterMapping) ([]RosterEntry, error) {
	query, args, err := rosterQuery(m)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	var entries []RosterEntry
	for rows.Next() {
		var e RosterEntry
		if err := rows.Scan(&e.Name, &e.Code); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		e.Name = strings.TrimSpace(e.Name)
		e.Code = strings.TrimSpace(e.Code)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return entries, nil
}
