// Package filter translates AIP-160 list filters into SQL conditions.
package filter

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "status = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// Empty reports whether the condition filters nothing.
func (c SQLCondition) Empty() bool {
	return c.Clause == ""
}

// field declares one filterable identifier.
type field struct {
	name   string
	column string
	kind   *expr.Type
}

// Schema binds filter identifiers to table columns.
type Schema struct {
	fields map[string]field
	order  []string
}

func newSchema(fields ...field) Schema {
	schema := Schema{fields: make(map[string]field, len(fields))}
	for _, f := range fields {
		schema.fields[f.name] = f
		schema.order = append(schema.order, f.name)
	}
	return schema
}

// Transactions filters ledger entries.
var Transactions = newSchema(
	field{name: "asset_id", column: "asset_id", kind: filtering.TypeString},
	field{name: "requester_id", column: "requester_id", kind: filtering.TypeString},
	field{name: "verifier_id", column: "verifier_id", kind: filtering.TypeString},
	field{name: "action", column: "action", kind: filtering.TypeString},
	field{name: "status", column: "status", kind: filtering.TypeString},
	field{name: "created_at", column: "created_at", kind: filtering.TypeTimestamp},
)

// Assets filters registry records.
var Assets = newSchema(
	field{name: "status", column: "status", kind: filtering.TypeString},
	field{name: "category", column: "category", kind: filtering.TypeString},
	field{name: "name", column: "name", kind: filtering.TypeString},
	field{name: "location_id", column: "location_id", kind: filtering.TypeString},
)

// Declarations returns the AIP-160 declarations for the schema.
func (s Schema) Declarations() (*filtering.Declarations, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for _, name := range s.order {
		opts = append(opts, filtering.DeclareIdent(name, s.fields[name].kind))
	}
	return filtering.NewDeclarations(opts...)
}

// Parse parses an AIP-160 filter expression and returns a SQL condition.
// Returns an empty condition for an empty filter string. Failures carry
// CodeInvalidFilter.
func (s Schema) Parse(filterStr string) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}

	decls, err := s.Declarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}

	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return SQLCondition{}, apperrors.Wrap(apperrors.CodeInvalidFilter, "parse filter", err)
	}

	cond, err := s.translateExpr(parsed.CheckedExpr.GetExpr())
	if err != nil {
		return SQLCondition{}, apperrors.Wrap(apperrors.CodeInvalidFilter, "translate filter", err)
	}
	return cond, nil
}

func (s Schema) translateExpr(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return s.translateCall(kind.CallExpr)
	default:
		return SQLCondition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

var comparisons = map[string]string{
	"=":  "=",
	"!=": "!=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

func (s Schema) translateCall(call *expr.Expr_Call) (SQLCondition, error) {
	switch call.Function {
	case "AND":
		return s.translateJunction(call.Args, "AND")
	case "OR":
		return s.translateJunction(call.Args, "OR")
	case "NOT":
		return s.translateNot(call.Args)
	}
	if op, ok := comparisons[call.Function]; ok {
		return s.translateComparison(call.Args, op)
	}
	return SQLCondition{}, fmt.Errorf("unsupported function: %s", call.Function)
}

func (s Schema) translateJunction(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s requires 2 arguments", op)
	}

	left, err := s.translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	right, err := s.translateExpr(args[1])
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func (s Schema) translateNot(args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 1 {
		return SQLCondition{}, fmt.Errorf("NOT requires 1 argument")
	}
	inner, err := s.translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{
		Clause: fmt.Sprintf("NOT (%s)", inner.Clause),
		Params: inner.Params,
	}, nil
}

func (s Schema) translateComparison(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}

	name, err := extractFieldName(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	f, ok := s.fields[name]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field: %s", name)
	}

	value, err := extractValue(args[1])
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", f.column, op),
		Params: []any{value},
	}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == "timestamp" && len(kind.CallExpr.Args) == 1 {
			return extractTimestampValue(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}

	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

// Timestamps compare as unix milliseconds, the stored column format.
func extractTimestampValue(e *expr.Expr) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("nil timestamp argument")
	}

	kind, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a constant string")
	}
	strVal, ok := kind.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, strVal.StringValue)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp format: %s", strVal.StringValue)
	}
	return t.UTC().UnixMilli(), nil
}
