package duckdb

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// node is one object of the JSON tree produced by json_serialize_sql.
type node = map[string]any

// serialized is the envelope json_serialize_sql returns.
type serialized struct {
	Error        bool   `json:"error"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	Statements   []struct {
		Node node `json:"node"`
	} `json:"statements"`
}

// ParseError reports that DuckDB rejected the statement.
type ParseError struct {
	Type    string
	Message string
}

func (e *ParseError) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// decodeQuery decodes json_serialize_sql output and returns the root query node.
func decodeQuery(data []byte) (node, error) {
	var s serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode serialized statement: %w", err)
	}
	if s.Error {
		return nil, &ParseError{Type: s.ErrorType, Message: s.ErrorMessage}
	}
	if len(s.Statements) != 1 {
		return nil, fmt.Errorf("expected exactly one statement, got %d", len(s.Statements))
	}
	if s.Statements[0].Node == nil {
		return nil, fmt.Errorf("serialized statement has no query node")
	}
	return s.Statements[0].Node, nil
}

func str(n node, key string) string {
	if v, ok := n[key].(string); ok {
		return v
	}
	return ""
}

func obj(n node, key string) node {
	if v, ok := n[key].(map[string]any); ok {
		return v
	}
	return nil
}

func list(n node, key string) []node {
	raw, ok := n[key].([]any)
	if !ok {
		return nil
	}
	out := make([]node, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func strList(n node, key string) []string {
	raw, ok := n[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func boolean(n node, key string) bool {
	v, _ := n[key].(bool)
	return v
}

// origin is a physical source column.
type origin struct {
	Catalog  string
	Database string
	Table    string
	Column   string
	Invalid  bool
}

// column is one output column of a query block.
type column struct {
	Name      string
	Origins   []origin
	Transform string
	Invalid   bool
}

// expr is the text of the column within its query block.
func (c column) expr() string {
	if c.Transform != "" {
		return c.Transform
	}
	return c.Name
}

// unexpanded reports whether c stands for a star whose columns are unknown.
func (c column) unexpanded() bool {
	return c.Name == "*" && c.Invalid
}

// source is one relation visible in a FROM clause.
type source struct {
	Alias    string
	Catalog  string
	Database string
	Table    string

	// Derived sources (subqueries, CTEs) expose resolved columns.
	Derived bool
	Columns []column

	// Opaque sources (table functions) expose nothing resolvable.
	Opaque bool
}

func (s *source) matches(qualifier []string) bool {
	switch len(qualifier) {
	case 1:
		if s.Alias != "" {
			return strings.EqualFold(s.Alias, qualifier[0])
		}
		return strings.EqualFold(s.Table, qualifier[0])
	case 2:
		return !s.Derived && strings.EqualFold(s.Database, qualifier[0]) && strings.EqualFold(s.Table, qualifier[1])
	case 3:
		return !s.Derived && strings.EqualFold(s.Catalog, qualifier[0]) &&
			strings.EqualFold(s.Database, qualifier[1]) && strings.EqualFold(s.Table, qualifier[2])
	}
	return false
}

func (s *source) column(name string) (*column, bool) {
	for i := range s.Columns {
		if strings.EqualFold(s.Columns[i].Name, name) {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// scope is the namespace of one query block.
type scope struct {
	sources []source
	ctes    map[string][]column
	parent  *scope
}

func newScope(parent *scope) *scope {
	return &scope{ctes: make(map[string][]column), parent: parent}
}

func (s *scope) cte(name string) ([]column, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		for k, cols := range sc.ctes {
			if strings.EqualFold(k, name) {
				return cols, true
			}
		}
	}
	return nil, false
}

// walker turns a serialized query tree into output columns with physical origins.
type walker struct {
	catalog  string
	database string
}

// query analyzes a query node (SELECT or set operation).
func (w *walker) query(n node, outer *scope) ([]column, error) {
	sc := newScope(outer)
	if err := w.registerCTEs(n, sc); err != nil {
		return nil, err
	}

	switch t := str(n, "type"); t {
	case "SELECT_NODE":
		return w.selectNode(n, sc)
	case "SET_OPERATION_NODE":
		return w.setOperation(n, sc)
	case "CTE_NODE":
		name := str(n, "ctename")
		cols, err := w.query(obj(n, "query"), sc)
		if err != nil {
			return nil, fmt.Errorf("cte %s: %w", name, err)
		}
		sc.ctes[name] = renamed(cols, strList(n, "aliases"))
		return w.query(obj(n, "child"), sc)
	default:
		return nil, fmt.Errorf("unsupported query node %q", t)
	}
}

func (w *walker) registerCTEs(n node, sc *scope) error {
	for _, entry := range list(obj(n, "cte_map"), "map") {
		name := str(entry, "key")
		q := obj(obj(entry, "value"), "query")
		if name == "" || q == nil {
			continue
		}
		cols, err := w.query(obj(q, "node"), sc)
		if err != nil {
			return fmt.Errorf("cte %s: %w", name, err)
		}
		sc.ctes[name] = renamed(cols, strList(obj(entry, "value"), "aliases"))
	}
	return nil
}

func (w *walker) selectNode(n node, sc *scope) ([]column, error) {
	if from := obj(n, "from_table"); from != nil {
		if err := w.from(from, sc); err != nil {
			return nil, err
		}
	}

	var cols []column
	for i, item := range list(n, "select_list") {
		if str(item, "class") == "STAR" {
			cols = append(cols, w.expandStar(item, sc)...)
			continue
		}
		cols = append(cols, w.projection(item, sc, i))
	}
	return cols, nil
}

func (w *walker) setOperation(n node, sc *scope) ([]column, error) {
	branches := list(n, "children")
	if len(branches) == 0 {
		branches = []node{obj(n, "left"), obj(n, "right")}
	}

	op := strings.ReplaceAll(str(n, "setop_type"), "_", " ")
	if boolean(n, "setop_all") {
		op += " ALL"
	}

	var out []column
	var exprs [][]string
	for i, branch := range branches {
		cols, err := w.query(branch, sc)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			out = cols
			exprs = make([][]string, len(cols))
		} else if len(cols) != len(out) {
			return nil, fmt.Errorf("set operation branches have %d and %d columns", len(out), len(cols))
		}
		for j := range cols {
			exprs[j] = append(exprs[j], cols[j].expr())
			if i == 0 {
				continue
			}
			out[j].Origins = dedupe(slices.Concat(out[j].Origins, cols[j].Origins))
			out[j].Invalid = out[j].Invalid || cols[j].Invalid
		}
	}

	for j := range out {
		out[j].Transform = op + "(" + strings.Join(exprs[j], ", ") + ")"
	}
	return out, nil
}

// from registers the relations of a FROM clause in sc.
func (w *walker) from(n node, sc *scope) error {
	switch str(n, "type") {
	case "BASE_TABLE":
		catalog, database, table := str(n, "catalog_name"), str(n, "schema_name"), str(n, "table_name")
		alias := str(n, "alias")
		if catalog == "" && database == "" {
			if cols, ok := sc.cte(table); ok {
				if alias == "" {
					alias = table
				}
				sc.sources = append(sc.sources, source{Alias: alias, Table: table, Derived: true, Columns: renamed(cols, strList(n, "column_name_alias"))})
				return nil
			}
		}
		if catalog == "" {
			catalog = w.catalog
		}
		if database == "" {
			database = w.database
		}
		sc.sources = append(sc.sources, source{Alias: alias, Catalog: catalog, Database: database, Table: table})

	case "JOIN":
		if err := w.from(obj(n, "left"), sc); err != nil {
			return err
		}
		return w.from(obj(n, "right"), sc)

	case "SUBQUERY":
		// A derived table sees the enclosing CTEs but not its sibling relations.
		sub := obj(obj(n, "subquery"), "node")
		cols, err := w.query(sub, &scope{ctes: sc.ctes, parent: sc.parent})
		if err != nil {
			return fmt.Errorf("subquery %s: %w", str(n, "alias"), err)
		}
		sc.sources = append(sc.sources, source{
			Alias:   str(n, "alias"),
			Derived: true,
			Columns: renamed(cols, strList(n, "column_name_alias")),
		})

	case "EXPRESSION_LIST":
		sc.sources = append(sc.sources, w.valuesList(n, sc))

	case "EMPTY", "EMPTY_FROM", "":
		// SELECT without FROM

	default:
		sc.sources = append(sc.sources, source{Alias: str(n, "alias"), Opaque: true})
	}
	return nil
}

// valuesList exposes the rows of a VALUES clause as a derived source. Each
// column collects the references of its expressions across all rows, so
// constants produce columns without origins.
func (w *walker) valuesList(n node, sc *scope) source {
	alias := str(n, "alias")
	if alias == "" {
		alias = "valueslist"
	}
	names := strList(n, "expected_names")

	var cols []column
	rows, _ := n["values"].([]any)
	for r, raw := range rows {
		row, _ := raw.([]any)
		for i, v := range row {
			if r == 0 {
				name := fmt.Sprintf("col%d", i)
				if i < len(names) && names[i] != "" {
					name = names[i]
				}
				cols = append(cols, column{Name: name})
			}
			expr, ok := v.(map[string]any)
			if !ok || i >= len(cols) {
				continue
			}
			for _, ref := range w.columnRefs(expr, sc) {
				cols[i].Origins = append(cols[i].Origins, ref...)
			}
		}
	}
	for i := range cols {
		cols[i].Origins = dedupe(cols[i].Origins)
		for _, o := range cols[i].Origins {
			cols[i].Invalid = cols[i].Invalid || o.Invalid
		}
	}
	return source{Alias: alias, Derived: true, Columns: renamed(cols, strList(n, "column_name_alias"))}
}

func renamed(cols []column, aliases []string) []column {
	out := make([]column, len(cols))
	copy(out, cols)
	for i := range out {
		if i < len(aliases) && aliases[i] != "" {
			out[i].Name = aliases[i]
		}
	}
	return out
}

func (w *walker) expandStar(item node, sc *scope) []column {
	relation := str(item, "relation_name")

	var cols []column
	for i := range sc.sources {
		src := &sc.sources[i]
		if relation != "" && !src.matches([]string{relation}) {
			continue
		}
		switch {
		case src.Derived:
			cols = append(cols, src.Columns...)
		default:
			// Physical columns are unknown without a catalog lookup.
			cols = append(cols, column{
				Name:    "*",
				Origins: []origin{{Catalog: src.Catalog, Database: src.Database, Table: src.Table, Column: "*", Invalid: true}},
				Invalid: true,
			})
		}
	}
	if len(cols) == 0 {
		cols = append(cols, column{Name: "*", Invalid: true})
	}
	return cols
}

func (w *walker) projection(item node, sc *scope, index int) column {
	col := column{Name: str(item, "alias")}
	if col.Name == "" {
		col.Name = outputName(item, index)
	}

	if str(item, "class") == "COLUMN_REF" {
		origins, inner, invalid := w.resolve(strList(item, "column_names"), sc)
		col.Origins = origins
		col.Transform = inner
		col.Invalid = invalid
		return col
	}

	col.Transform = render(item)
	for _, ref := range w.columnRefs(item, sc) {
		col.Origins = append(col.Origins, ref...)
	}
	col.Origins = dedupe(col.Origins)
	for _, o := range col.Origins {
		if o.Invalid {
			col.Invalid = true
		}
	}
	return col
}

// columnRefs collects the origins of every column reference below n.
// Scalar subqueries contribute the origins of their output columns.
func (w *walker) columnRefs(n node, sc *scope) [][]origin {
	var out [][]origin
	var visit func(v any)
	visit = func(v any) {
		switch x := v.(type) {
		case map[string]any:
			switch str(x, "class") {
			case "COLUMN_REF":
				origins, _, _ := w.resolve(strList(x, "column_names"), sc)
				out = append(out, origins)
				return
			case "SUBQUERY":
				if sub := obj(obj(x, "subquery"), "node"); sub != nil {
					cols, err := w.query(sub, sc)
					if err != nil {
						out = append(out, []origin{{Invalid: true}})
					}
					for _, c := range cols {
						out = append(out, c.Origins)
					}
				}
				if child := obj(x, "child"); child != nil {
					visit(child)
				}
				return
			}
			for _, key := range slices.Sorted(maps.Keys(x)) {
				visit(x[key])
			}
		case []any:
			for _, child := range x {
				visit(child)
			}
		}
	}
	visit(n)
	return out
}

// resolve maps a column reference to physical origins. It also returns the
// transform inherited from a derived column and whether resolution was
// ambiguous or failed.
func (w *walker) resolve(parts []string, sc *scope) ([]origin, string, bool) {
	if len(parts) == 0 {
		return []origin{{Invalid: true}}, "", true
	}
	name := parts[len(parts)-1]
	qualifier := parts[:len(parts)-1]

	for s := sc; s != nil; s = s.parent {
		if len(qualifier) > 0 {
			for i := range s.sources {
				if s.sources[i].matches(qualifier) {
					return fromSource(&s.sources[i], name)
				}
			}
			continue
		}

		switch candidates := s.candidates(name); len(candidates) {
		case 0:
			continue
		case 1:
			return fromSource(candidates[0], name)
		default:
			return []origin{{Column: name, Invalid: true}}, "", true
		}
	}

	// Unresolvable: keep what the reference says and flag it.
	o := origin{Column: name, Invalid: true}
	switch len(qualifier) {
	case 1:
		o.Table = qualifier[0]
	case 2:
		o.Database, o.Table = qualifier[0], qualifier[1]
	case 3:
		o.Catalog, o.Database, o.Table = qualifier[0], qualifier[1], qualifier[2]
	}
	return []origin{o}, "", true
}

// candidates returns the sources that may provide an unqualified column.
// A derived source that names the column wins outright; otherwise a
// physical source is only a candidate when it is the only one in scope,
// since its columns are not known.
func (s *scope) candidates(name string) []*source {
	var derived, physical []*source
	for i := range s.sources {
		src := &s.sources[i]
		switch {
		case src.Derived:
			if _, ok := src.column(name); ok {
				derived = append(derived, src)
			}
		default:
			physical = append(physical, src)
		}
	}
	if len(derived) > 0 {
		return derived
	}
	return physical
}

func fromSource(src *source, name string) ([]origin, string, bool) {
	switch {
	case src.Derived:
		col, ok := src.column(name)
		if !ok {
			return []origin{{Column: name, Invalid: true}}, "", true
		}
		return col.Origins, col.Transform, col.Invalid
	case src.Opaque:
		return []origin{{Table: src.Alias, Column: name, Invalid: true}}, "", true
	default:
		return []origin{{Catalog: src.Catalog, Database: src.Database, Table: src.Table, Column: name}}, "", false
	}
}

func dedupe(origins []origin) []origin {
	seen := make(map[origin]struct{}, len(origins))
	out := origins[:0:0]
	for _, o := range origins {
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}

// outputName names an unaliased select item the way DuckDB would for the
// common cases.
func outputName(item node, index int) string {
	if str(item, "class") == "COLUMN_REF" {
		if names := strList(item, "column_names"); len(names) > 0 {
			return names[len(names)-1]
		}
	}
	if text := render(item); text != "" {
		return text
	}
	return fmt.Sprintf("col%d", index)
}
