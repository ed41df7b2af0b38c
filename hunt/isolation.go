package hunt

import (
	"regexp"
	"strings"
)

// IsolatedQuery is a translated query that carries the tenant ownership
// predicate. It is the only input the Executor accepts, and the Enforcer is
// the only way to construct one: execution of a non-isolated query does not
// type-check.
type IsolatedQuery struct {
	sql         string
	principalID string
}

// SQL returns the final relational text, ownership predicate included.
func (q IsolatedQuery) SQL() string {
	return q.sql
}

// PrincipalID returns the principal the query is scoped to.
func (q IsolatedQuery) PrincipalID() string {
	return q.principalID
}

// Enforcer injects the tenant ownership predicate into every translated
// query. It runs unconditionally after translation, is not expressible in
// the pipe language, and is the single point of row-isolation enforcement:
// ad-hoc runs, saved-query re-runs, and any future execution path inherit
// the guarantee by going through it.
type Enforcer struct{}

// OwnerColumn is the tenant-ownership column of every queryable entity.
const OwnerColumn = "owner"

var (
	whereKeywordRe    = regexp.MustCompile(`(?i)\bwhere\b`)
	trailingClausesRe = regexp.MustCompile(`(?i)\bgroup\s+by\b|\border\s+by\b|\blimit\b`)
)

// Enforce returns q with exactly one ownership predicate bound to
// principalID. An existing WHERE clause has the predicate spliced in
// immediately after the keyword, joined to the rest with AND; otherwise a
// WHERE clause referencing only the predicate is added before any trailing
// GROUP BY/ORDER BY/LIMIT clause.
func (Enforcer) Enforce(q TranslatedQuery, principalID string) IsolatedQuery {
	predicate := OwnerColumn + " = '" + strings.ReplaceAll(principalID, "'", "''") + "'"
	sql := q.sql

	if loc := findOutsideLiterals(sql, whereKeywordRe); loc != nil {
		sql = sql[:loc[1]] + " " + predicate + " AND" + sql[loc[1]:]
	} else {
		sql = insertBeforeTrailingClauses(sql, "WHERE "+predicate, trailingClausesRe)
	}

	return IsolatedQuery{
		sql:         collapseSpaces(sql),
		principalID: principalID,
	}
}

// findOutsideLiterals locates the first match of re outside string literals
// and returns its bounds in the original text.
func findOutsideLiterals(text string, re *regexp.Regexp) []int {
	segs := splitLiterals(text)
	offset := 0
	for i := 0; i < len(segs); i += 2 {
		if loc := re.FindStringIndex(segs[i]); loc != nil {
			return []int{offset + loc[0], offset + loc[1]}
		}
		offset += len(segs[i])
		if i+1 < len(segs) {
			offset += len(segs[i+1]) + 2
		}
	}
	return nil
}
