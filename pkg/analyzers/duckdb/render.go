package duckdb

import (
	"fmt"
	"strconv"
	"strings"
)

var comparisonOps = map[string]string{
	"COMPARE_EQUAL":                "=",
	"COMPARE_NOTEQUAL":             "<>",
	"COMPARE_LESSTHAN":             "<",
	"COMPARE_GREATERTHAN":          ">",
	"COMPARE_LESSTHANOREQUALTO":    "<=",
	"COMPARE_GREATERTHANOREQUALTO": ">=",
	"COMPARE_DISTINCT_FROM":        "IS DISTINCT FROM",
	"COMPARE_NOT_DISTINCT_FROM":    "IS NOT DISTINCT FROM",
}

// render produces readable SQL-ish text for an expression node. It is used
// as the transform description, not as executable SQL.
func render(n node) string {
	if n == nil {
		return ""
	}

	switch str(n, "class") {
	case "COLUMN_REF":
		return strings.Join(strList(n, "column_names"), ".")

	case "CONSTANT":
		return renderConstant(obj(n, "value"))

	case "STAR":
		if rel := str(n, "relation_name"); rel != "" {
			return rel + ".*"
		}
		return "*"

	case "FUNCTION", "AGGREGATE":
		args := renderAll(list(n, "children"))
		name := str(n, "function_name")
		if boolean(n, "is_operator") {
			switch len(args) {
			case 1:
				return name + args[0]
			case 2:
				return args[0] + " " + name + " " + args[1]
			}
		}
		prefix := ""
		if boolean(n, "distinct") {
			prefix = "DISTINCT "
		}
		return fmt.Sprintf("%s(%s%s)", name, prefix, strings.Join(args, ", "))

	case "WINDOW":
		args := renderAll(list(n, "children"))
		over := ""
		if parts := renderAll(list(n, "partitions")); len(parts) > 0 {
			over = "PARTITION BY " + strings.Join(parts, ", ")
		}
		return fmt.Sprintf("%s(%s) OVER (%s)", str(n, "function_name"), strings.Join(args, ", "), over)

	case "CAST":
		typ := str(obj(n, "cast_type"), "id")
		if typ == "" {
			typ = "?"
		}
		return fmt.Sprintf("CAST(%s AS %s)", render(obj(n, "child")), typ)

	case "COMPARISON":
		op, ok := comparisonOps[str(n, "type")]
		if !ok {
			op = str(n, "type")
		}
		return render(obj(n, "left")) + " " + op + " " + render(obj(n, "right"))

	case "CONJUNCTION":
		sep := " AND "
		if str(n, "type") == "CONJUNCTION_OR" {
			sep = " OR "
		}
		return "(" + strings.Join(renderAll(list(n, "children")), sep) + ")"

	case "OPERATOR":
		return renderOperator(n)

	case "CASE":
		var b strings.Builder
		b.WriteString("CASE")
		for _, check := range list(n, "case_checks") {
			fmt.Fprintf(&b, " WHEN %s THEN %s", render(obj(check, "when_expr")), render(obj(check, "then_expr")))
		}
		if e := obj(n, "else_expr"); e != nil {
			fmt.Fprintf(&b, " ELSE %s", render(e))
		}
		b.WriteString(" END")
		return b.String()

	case "BETWEEN":
		return fmt.Sprintf("%s BETWEEN %s AND %s", render(obj(n, "input")), render(obj(n, "lower")), render(obj(n, "upper")))

	case "SUBQUERY":
		return "(subquery)"
	}

	return strings.ToLower(str(n, "class"))
}

func renderAll(nodes []node) []string {
	out := make([]string, len(nodes))
	for i, c := range nodes {
		out[i] = render(c)
	}
	return out
}

func renderOperator(n node) string {
	args := renderAll(list(n, "children"))
	first := ""
	if len(args) > 0 {
		first = args[0]
	}

	switch str(n, "type") {
	case "OPERATOR_NOT":
		return "NOT " + first
	case "OPERATOR_IS_NULL":
		return first + " IS NULL"
	case "OPERATOR_IS_NOT_NULL":
		return first + " IS NOT NULL"
	case "COMPARE_IN":
		return fmt.Sprintf("%s IN (%s)", first, strings.Join(args[min(1, len(args)):], ", "))
	case "COMPARE_NOT_IN":
		return fmt.Sprintf("%s NOT IN (%s)", first, strings.Join(args[min(1, len(args)):], ", "))
	case "OPERATOR_COALESCE":
		return fmt.Sprintf("COALESCE(%s)", strings.Join(args, ", "))
	}
	return fmt.Sprintf("%s(%s)", strings.ToLower(str(n, "type")), strings.Join(args, ", "))
}

func renderConstant(v node) string {
	if v == nil || boolean(v, "is_null") {
		return "NULL"
	}
	switch val := v["value"].(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "NULL"
	default:
		return fmt.Sprintf("%v", val)
	}
}
