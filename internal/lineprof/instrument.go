package lineprof

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strconv"

	"golang.org/x/tools/go/ast/astutil"
)

// Instrument parses the merged unit and injects a probe call before every
// statement, carrying the statement's merged-unit line number as a literal.
// It returns the rewritten declaration of the entry function, ready to be
// evaluated together with an `import "nbprobe"` prelude.
//
// The merged unit is prefixed with a package clause on the same physical
// line, so parser positions line up exactly with merged-unit line numbers.
func Instrument(merged string, entryPoint string) (string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "notebook.go", "package main; "+merged, 0)
	if err != nil {
		return "", fmt.Errorf("parsing merged unit: %w", err)
	}

	var fn *ast.FuncDecl
	for _, decl := range file.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok && fd.Name.Name == entryPoint {
			fn = fd
			break
		}
	}
	if fn == nil {
		return "", fmt.Errorf("entry point %s not found in merged unit", entryPoint)
	}

	astutil.Apply(fn.Body, func(c *astutil.Cursor) bool {
		stmt, ok := c.Node().(ast.Stmt)
		if !ok {
			return true
		}
		switch stmt.(type) {
		case *ast.CaseClause, *ast.CommClause:
			// Clause nodes are the slice elements of a switch/select body;
			// statements cannot be inserted between them. Their own Body
			// statements are still visited.
			return true
		}
		if c.Index() < 0 {
			// Not a slice element (e.g. a loop init statement): probes
			// cannot be inserted here.
			return true
		}
		if !stmt.Pos().IsValid() {
			// One of our own probe statements.
			return false
		}
		line := fset.Position(stmt.Pos()).Line
		c.InsertBefore(probeStmt(line))
		return true
	}, nil)

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, fn); err != nil {
		return "", fmt.Errorf("rendering instrumented unit: %w", err)
	}
	return buf.String(), nil
}

func probeStmt(line int) ast.Stmt {
	return &ast.ExprStmt{
		X: &ast.CallExpr{
			Fun: &ast.SelectorExpr{
				X:   ast.NewIdent(ProbeImport),
				Sel: ast.NewIdent("Hit"),
			},
			Args: []ast.Expr{
				&ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(line)},
			},
		},
	}
}
