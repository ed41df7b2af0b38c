package hunt

import (
	"regexp"
	"strings"
)

// TranslatedQuery is the output of the translator. Its SQL is not yet
// tenant-scoped: the field is unexported and only the Enforcer can turn it
// into something the Executor accepts, so an un-isolated query cannot reach
// the backend by construction.
type TranslatedQuery struct {
	sql string
}

// RawSQL exposes the translated text for logging and tests. It is not
// accepted by the Executor.
func (q TranslatedQuery) RawSQL() string {
	return q.sql
}

// Translator rewrites a pipe-based hunt query into relational SQL.
//
// The grammar is deliberately permissive: translation is an ordered pipeline
// of text rewrite passes, one per operator, and unrecognized operators pass
// through verbatim (pipe character included) so that malformed input
// surfaces as a backend error rather than a parse rejection.
type Translator struct {
	catalog       *Catalog
	defaultEntity string
}

// NewTranslator creates a translator bound to a schema catalog. The catalog
// resolves the pipe form's leading segment; it does not type-check queries.
func NewTranslator(catalog *Catalog) *Translator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Translator{
		catalog:       catalog,
		defaultEntity: DefaultEntityName,
	}
}

// Translate rewrites rawText into a relational query. The only failure is
// blank input; everything else translates to something, possibly invalid
// SQL that the backend will reject.
func (t *Translator) Translate(rawText string) (TranslatedQuery, error) {
	trimmed := strings.TrimSpace(rawText)
	if trimmed == "" {
		return TranslatedQuery{}, &TranslationError{Reason: ReasonEmptyInput}
	}

	if t.isDirectRelational(trimmed) {
		sql := applyTokenPasses(trimmed)
		sql = ensureSourceClause(sql, t.defaultEntity)
		return TranslatedQuery{sql: collapseSpaces(sql)}, nil
	}

	head, rest, _ := strings.Cut(trimmed, "|")
	entity := strings.TrimSpace(head)
	if !t.catalog.HasEntity(entity) {
		entity = t.defaultEntity
	}

	st := &pipeState{selectList: "*", rest: "|" + rest}
	for _, pass := range structuralPasses {
		pass.apply(st)
	}

	sql := "SELECT " + st.selectList + " FROM " + entity + " " + st.rest
	sql = applyTokenPasses(sql)
	if st.groupBy != "" {
		sql = insertBeforeTrailingClauses(sql, "GROUP BY "+st.groupBy, orderOrLimitRe)
	}
	return TranslatedQuery{sql: collapseSpaces(sql)}, nil
}

// isDirectRelational reports whether the text is already a relational query:
// it starts with a SELECT clause, or carries no pipe operators at all.
func (t *Translator) isDirectRelational(text string) bool {
	if selectPrefixRe.MatchString(text) {
		return true
	}
	return !strings.Contains(text, "|")
}

// pipeState carries the working translation through the structural passes.
type pipeState struct {
	selectList string
	groupBy    string
	rest       string
}

// structuralPasses rewrite the pipe operators in table order. Each pass is
// independent and pure over the state, which keeps the translation auditable
// pass by pass.
var structuralPasses = []struct {
	name  string
	apply func(*pipeState)
}{
	{"project", rewriteProject},
	{"extend", rewriteExtend},
	{"where", rewriteWhere},
	{"summarize", rewriteSummarize},
	{"take", rewriteTake},
	{"sort", rewriteSort},
}

var (
	selectPrefixRe = regexp.MustCompile(`(?i)^\s*select\b`)
	projectRe      = regexp.MustCompile(`(?i)\|\s*project\s+([^|]*)`)
	extendRe       = regexp.MustCompile(`(?i)\|\s*extend\s+([^|]*)`)
	whereRe        = regexp.MustCompile(`(?i)\|\s*where\s+`)
	summarizeRe    = regexp.MustCompile(`(?i)\|\s*summarize\s+([^|]*)`)
	summarizeByRe  = regexp.MustCompile(`(?i)\s+by\s+`)
	takeRe         = regexp.MustCompile(`(?i)\|\s*(?:take|top)\s+`)
	sortRe         = regexp.MustCompile(`(?i)\|\s*sort\s+by\s+`)
	fromRe         = regexp.MustCompile(`(?i)\bfrom\b`)
	orderOrLimitRe = regexp.MustCompile(`(?i)\border\s+by\b|\blimit\b`)
)

// rewriteProject captures the first project segment into the select list.
func rewriteProject(st *pipeState) {
	m := projectRe.FindStringSubmatchIndex(st.rest)
	if m == nil {
		return
	}
	st.selectList = strings.TrimSpace(st.rest[m[2]:m[3]])
	st.rest = st.rest[:m[0]] + st.rest[m[1]:]
}

// rewriteExtend appends the extend expression to the existing columns. This
// is additive projection, not a true computed-column implementation.
func rewriteExtend(st *pipeState) {
	m := extendRe.FindStringSubmatchIndex(st.rest)
	if m == nil {
		return
	}
	expr := strings.TrimSpace(st.rest[m[2]:m[3]])
	if expr != "" {
		st.selectList = st.selectList + ", " + expr
	}
	st.rest = st.rest[:m[0]] + st.rest[m[1]:]
}

// rewriteWhere turns the first where segment into a WHERE clause and every
// subsequent one into AND, so stacked filters compose by sequential
// application.
func rewriteWhere(st *pipeState) {
	first := true
	st.rest = whereRe.ReplaceAllStringFunc(st.rest, func(string) string {
		if first {
			first = false
			return " WHERE "
		}
		return " AND "
	})
}

// rewriteSummarize maps `summarize <agg> by <cols>` onto the select list and
// a pending GROUP BY clause.
func rewriteSummarize(st *pipeState) {
	m := summarizeRe.FindStringSubmatchIndex(st.rest)
	if m == nil {
		return
	}
	body := strings.TrimSpace(st.rest[m[2]:m[3]])
	st.rest = st.rest[:m[0]] + st.rest[m[1]:]

	parts := summarizeByRe.Split(body, 2)
	agg := strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		cols := strings.TrimSpace(parts[1])
		st.groupBy = cols
		st.selectList = cols + ", " + agg
	} else {
		st.selectList = agg
	}
}

// rewriteTake maps take/top segments onto LIMIT.
func rewriteTake(st *pipeState) {
	st.rest = takeRe.ReplaceAllString(st.rest, " LIMIT ")
}

// rewriteSort maps sort-by segments onto ORDER BY.
func rewriteSort(st *pipeState) {
	st.rest = sortRe.ReplaceAllString(st.rest, " ORDER BY ")
}

// applyTokenPasses runs the token-level substitutions shared by the pipe and
// direct forms: literal quote normalization, comparison operators, pattern
// operators, boolean connectives.
func applyTokenPasses(text string) string {
	text = normalizeQuotes(text)
	text = rewriteOutsideLiterals(text, rewriteComparisons)
	text = rewritePatternOps(text)
	text = rewriteOutsideLiterals(text, normalizeBooleans)
	return text
}

var booleanRe = regexp.MustCompile(`(?i)\b(and|or|not)\b`)

func rewriteComparisons(text string) string {
	text = strings.ReplaceAll(text, "==", "=")
	text = strings.ReplaceAll(text, "!=", "<>")
	return text
}

func normalizeBooleans(text string) string {
	return booleanRe.ReplaceAllStringFunc(text, strings.ToUpper)
}

var (
	// pattern operator directly followed by a quoted literal; the literal is
	// in the adjacent segment after splitLiterals
	trailingPatternOpRe = regexp.MustCompile(`(?i)\b(contains|startswith|endswith)\s*$`)
	// pattern operator followed by a bare (unquoted) value
	barePatternOpRe = regexp.MustCompile(`(?i)\b(contains|startswith|endswith)\s+([^\s|()']+)`)
)

// rewritePatternOps maps contains/startswith/endswith onto LIKE. The literal
// is wrapped with wildcard markers only when it carries none: contains wraps
// both sides, startswith anchors the left, endswith anchors the right.
func rewritePatternOps(text string) string {
	segs := splitLiterals(text)
	for i := 0; i < len(segs); i += 2 {
		if i+1 < len(segs) {
			if m := trailingPatternOpRe.FindStringSubmatch(segs[i]); m != nil {
				segs[i] = trailingPatternOpRe.ReplaceAllString(segs[i], "LIKE ")
				segs[i+1] = wildcardWrap(strings.ToLower(m[1]), segs[i+1])
				continue
			}
		}
		segs[i] = barePatternOpRe.ReplaceAllStringFunc(segs[i], func(match string) string {
			m := barePatternOpRe.FindStringSubmatch(match)
			value := strings.ReplaceAll(m[2], "'", "''")
			return "LIKE '" + wildcardWrap(strings.ToLower(m[1]), value) + "'"
		})
	}
	return joinLiterals(segs)
}

func wildcardWrap(op, value string) string {
	if strings.Contains(value, "%") {
		return value
	}
	switch op {
	case "contains":
		return "%" + value + "%"
	case "startswith":
		return value + "%"
	case "endswith":
		return "%" + value
	}
	return value
}

// ensureSourceClause appends a FROM clause when none exists: before the
// first limiting/ordering clause if either is present, otherwise at the
// end. A query that already has a source clause is left untouched.
func ensureSourceClause(sql, entity string) string {
	if matchesOutsideLiterals(sql, fromRe) {
		return sql
	}
	return insertBeforeTrailingClauses(sql, "FROM "+entity, orderOrLimitRe)
}

// insertBeforeTrailingClauses splices clause into sql immediately before the
// first match of boundary (outside string literals), or appends it.
func insertBeforeTrailingClauses(sql, clause string, boundary *regexp.Regexp) string {
	segs := splitLiterals(sql)
	offset := 0
	for i := 0; i < len(segs); i += 2 {
		if loc := boundary.FindStringIndex(segs[i]); loc != nil {
			at := offset + loc[0]
			return strings.TrimSpace(sql[:at]) + " " + clause + " " + sql[at:]
		}
		offset += len(segs[i])
		if i+1 < len(segs) {
			offset += len(segs[i+1]) + 2 // quotes
		}
	}
	return strings.TrimSpace(sql) + " " + clause
}

func matchesOutsideLiterals(text string, re *regexp.Regexp) bool {
	segs := splitLiterals(text)
	for i := 0; i < len(segs); i += 2 {
		if re.MatchString(segs[i]) {
			return true
		}
	}
	return false
}

// rewriteOutsideLiterals applies fn to the portions of text that sit outside
// single-quoted string literals.
func rewriteOutsideLiterals(text string, fn func(string) string) string {
	segs := splitLiterals(text)
	for i := 0; i < len(segs); i += 2 {
		segs[i] = fn(segs[i])
	}
	return joinLiterals(segs)
}

// splitLiterals splits text into alternating segments: even indexes are
// outside single-quoted literals, odd indexes are literal bodies. A doubled
// quote inside a literal is kept as part of the body. An unterminated
// literal runs to the end of the text.
func splitLiterals(text string) []string {
	var segs []string
	var cur strings.Builder
	inLiteral := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\'' {
			cur.WriteByte(c)
			continue
		}
		if inLiteral && i+1 < len(text) && text[i+1] == '\'' {
			cur.WriteString("''")
			i++
			continue
		}
		segs = append(segs, cur.String())
		cur.Reset()
		inLiteral = !inLiteral
	}
	segs = append(segs, cur.String())
	return segs
}

// joinLiterals reassembles the output of splitLiterals, re-wrapping literal
// bodies in single quotes.
func joinLiterals(segs []string) string {
	var out strings.Builder
	for i, seg := range segs {
		if i%2 == 1 {
			out.WriteByte('\'')
			out.WriteString(seg)
			out.WriteByte('\'')
		} else {
			out.WriteString(seg)
		}
	}
	return out.String()
}

// normalizeQuotes converts double-quoted literals to single-quoted SQL
// literals, doubling any embedded single quotes.
func normalizeQuotes(text string) string {
	var out strings.Builder
	inSingle := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\'':
			inSingle = !inSingle
			out.WriteByte(c)
		case c == '"' && !inSingle:
			j := i + 1
			var body strings.Builder
			for j < len(text) && text[j] != '"' {
				if text[j] == '\\' && j+1 < len(text) && (text[j+1] == '"' || text[j+1] == '\\') {
					j++
				}
				body.WriteByte(text[j])
				j++
			}
			out.WriteByte('\'')
			out.WriteString(strings.ReplaceAll(body.String(), "'", "''"))
			out.WriteByte('\'')
			i = j
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

var spacesRe = regexp.MustCompile(`\s+`)

// collapseSpaces normalizes whitespace outside string literals.
func collapseSpaces(text string) string {
	collapsed := rewriteOutsideLiterals(text, func(s string) string {
		return spacesRe.ReplaceAllString(s, " ")
	})
	return strings.TrimSpace(collapsed)
}
