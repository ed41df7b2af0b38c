package hunt

import "strings"

// Advisor maps backend failure messages to human-readable remediation
// hints. Matching is by substring on the lowered message in a fixed
// priority order; the first matching category wins and categories are never
// combined. Syntax outranks the rest because a message mentioning both
// "syntax" and "column" is most actionable as a syntax problem.
type Advisor struct {
	catalog *Catalog
}

// NewAdvisor creates an advisor bound to the schema catalog, which it uses
// to name known columns in missing-column hints.
func NewAdvisor(catalog *Catalog) *Advisor {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Advisor{catalog: catalog}
}

// Hint returns a remediation hint for a backend error message. It is a pure
// function of the message and the catalog.
func (a *Advisor) Hint(errorMessage string) string {
	lowered := strings.ToLower(errorMessage)

	switch {
	case strings.Contains(lowered, "syntax"):
		return "The translated query has a syntax problem. Check operator spelling and segment order; unrecognized pipe operators are passed through as-is and fail at execution."
	case strings.Contains(lowered, "column") || strings.Contains(lowered, "field") ||
		strings.Contains(lowered, "unknown identifier"):
		return "The query references a column that does not exist. Known columns on " + DefaultEntityName + ": " + strings.Join(a.catalog.ColumnNames(DefaultEntityName), ", ") + "."
	case strings.Contains(lowered, "permission") || strings.Contains(lowered, "denied") ||
		strings.Contains(lowered, "not allowed"):
		return "The backend denied access. Results are always restricted to incidents owned by your account; remove references to other tenants' data."
	case strings.Contains(lowered, "timeout") || strings.Contains(lowered, "timed out") ||
		strings.Contains(lowered, "deadline"):
		return "The query exceeded the execution time budget. Narrow the filter (add a where clause) or reduce the result size with take."
	default:
		return "The query failed. Simplify it and re-run; results are capped at 100 rows per query."
	}
}
