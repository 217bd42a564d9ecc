package storage

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// NullPolicy decides what an explicitly supplied null does to a stored value.
// Omitted columns are never touched under either policy.
type NullPolicy int

const (
	// NullOverwrites writes the null, clearing the stored value.
	NullOverwrites NullPolicy = iota
	// NullKeepsExisting keeps the stored value (COALESCE).
	NullKeepsExisting
)

// SummaryNullPolicy: a summary row is a full snapshot of the list payload.
const SummaryNullPolicy = NullOverwrites

// DetailNullPolicy governs detail and strategy merges. Supplied keys are
// written as given, nulls included; absent keys are left alone.
const DetailNullPolicy = NullOverwrites

type statement struct {
	SQL  string
	Args []any
}

// buildUpsert renders an insert-or-update keyed on keyCol that writes only
// cols. A non-empty stamp column is set to NOW() on both branches.
func buildUpsert(table, keyCol string, key any, cols []string, vals []any, policy NullPolicy, stamp string) statement {
	tbl := pgx.Identifier{table}.Sanitize()
	keyIdent := pgx.Identifier{keyCol}.Sanitize()

	insertCols := []string{keyIdent}
	placeholders := []string{"$1"}
	args := append(make([]any, 0, len(vals)+1), key)
	sets := make([]string, 0, len(cols)+1)

	for i, c := range cols {
		ident := pgx.Identifier{c}.Sanitize()
		insertCols = append(insertCols, ident)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, vals[i])

		if policy == NullKeepsExisting {
			sets = append(sets, fmt.Sprintf("%s = COALESCE(EXCLUDED.%s, %s.%s)", ident, ident, tbl, ident))
		} else {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", ident, ident))
		}
	}

	if stamp != "" {
		ident := pgx.Identifier{stamp}.Sanitize()
		insertCols = append(insertCols, ident)
		placeholders = append(placeholders, "NOW()")
		sets = append(sets, ident+" = NOW()")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		tbl, strings.Join(insertCols, ", "), strings.Join(placeholders, ", "), keyIdent)
	if len(sets) == 0 {
		b.WriteString("DO NOTHING")
	} else {
		b.WriteString("DO UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}

	return statement{SQL: b.String(), Args: args}
}
