// This file contains the logic for parsing inline model point column
// declarations (e.g. `{ Age = int, Sex = string }`) into expand column types.

package hcl

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/cashgrid/internal/ctxlog"
	"github.com/vk/cashgrid/internal/expand"
	"github.com/zclconf/go-cty/cty"
)

// translateColumns reads an object expression of column types, keeping
// declaration order.
func translateColumns(ctx context.Context, expr hcl.Expression) ([]expand.ColumnType, []string, error) {
	pairs, diags := hcl.ExprMap(expr)
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("columns: %w", diags)
	}
	types := make([]expand.ColumnType, 0, len(pairs))
	headers := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		name, err := keyName(pair.Key)
		if err != nil {
			return nil, nil, fmt.Errorf("columns: %w", err)
		}
		typ, err := typeExprToColumnType(ctx, pair.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("column %q: %w", name, err)
		}
		headers = append(headers, name)
		types = append(types, typ)
	}
	return types, headers, nil
}

// typeExprToColumnType converts a type keyword, or a quoted type name,
// into its column type.
func typeExprToColumnType(ctx context.Context, expr hcl.Expression) (expand.ColumnType, error) {
	logger := ctxlog.FromContext(ctx)

	switch v := expr.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return 0, errors.New("invalid type keyword: traversal path is not a single identifier")
		}
		rootName := v.Traversal.RootName()
		logger.Debug("Parsing column type keyword.", "keyword", rootName)
		return expand.ParseColumnType(rootName)

	case *hclsyntax.TemplateExpr:
		val, diags := v.Value(nil)
		if diags.HasErrors() {
			return 0, diags
		}
		if val.IsNull() || !val.Type().Equals(cty.String) {
			return 0, errors.New("column type must be a keyword or a string")
		}
		return expand.ParseColumnType(val.AsString())

	default:
		return 0, fmt.Errorf("unsupported expression for column type: %T", v)
	}
}

func keyName(expr hcl.Expression) (string, error) {
	if name := hcl.ExprAsKeyword(expr); name != "" {
		return name, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if val.IsNull() || !val.Type().Equals(cty.String) {
		return "", errors.New("column name must be an identifier or a string")
	}
	return val.AsString(), nil
}

// isNullExpr reports whether expr is absent. gohcl fills missing optional
// expression fields with a static null.
func isNullExpr(expr hcl.Expression) bool {
	if expr == nil {
		return true
	}
	if len(expr.Variables()) > 0 {
		return false
	}
	val, diags := expr.Value(nil)
	return !diags.HasErrors() && val.IsNull()
}
