package duration_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/ipcheck/ipcheck/pkg/duration"
)

func TestScrapeTiming(t *testing.T) {
	if duration.ScrapeSettle <= duration.PollInterval {
		t.Errorf("ScrapeSettle (%v) should exceed PollInterval (%v)", duration.ScrapeSettle, duration.PollInterval)
	}
	if duration.LookupMax < duration.ScrapeSettle+15*duration.PollInterval {
		t.Errorf("LookupMax (%v) is shorter than one full scrape run", duration.LookupMax)
	}
}

// TestNoHardcodedDurations ensures Timeout/Interval/Delay/Settle fields use duration.* constants
func TestNoHardcodedDurations(t *testing.T) {
	root := findProjectRoot(t)
	var violations []string

	for _, field := range []string{"Timeout", "Interval", "Delay", "Settle"} {
		violations = append(violations, findHardcodedDurations(t, root, field)...)
	}

	if len(violations) > 0 {
		t.Errorf("Found %d hardcoded durations. Use duration.* instead:", len(violations))
		for _, v := range violations {
			t.Errorf("  %s", v)
		}
	}
}

// findHardcodedDurations walks pkg/ and cmd/ and reports struct fields set to literal durations.
func findHardcodedDurations(t *testing.T, root, fieldName string) []string {
	t.Helper()

	var violations []string
	report := func(fset *token.FileSet, expr ast.Expr) {
		pos := fset.Position(expr.Pos())
		relPath, _ := filepath.Rel(root, pos.Filename)
		violations = append(violations, relPath+":"+strconv.Itoa(pos.Line)+": "+fieldName+" = <hardcoded duration>")
	}

	for _, dir := range []string{"pkg", "cmd"} {
		_ = filepath.Walk(filepath.Join(root, dir), func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() || !strings.HasSuffix(path, ".go") {
				return nil
			}
			if strings.HasSuffix(path, "_test.go") || strings.HasSuffix(path, "duration.go") {
				return nil
			}

			fset := token.NewFileSet()
			node, err := parser.ParseFile(fset, path, nil, 0)
			if err != nil {
				return nil
			}

			ast.Inspect(node, func(n ast.Node) bool {
				switch n := n.(type) {
				case *ast.KeyValueExpr:
					if ident, ok := n.Key.(*ast.Ident); ok && ident.Name == fieldName && isHardcodedDuration(n.Value) {
						report(fset, n.Value)
					}
				case *ast.AssignStmt:
					for i, lhs := range n.Lhs {
						sel, ok := lhs.(*ast.SelectorExpr)
						if ok && sel.Sel.Name == fieldName && i < len(n.Rhs) && isHardcodedDuration(n.Rhs[i]) {
							report(fset, n.Rhs[i])
						}
					}
				}
				return true
			})
			return nil
		})
	}
	return violations
}

// isHardcodedDuration matches expressions like "30 * time.Second".
func isHardcodedDuration(expr ast.Expr) bool {
	bin, ok := expr.(*ast.BinaryExpr)
	if !ok {
		return false
	}
	if _, ok := bin.X.(*ast.BasicLit); !ok {
		return false
	}
	sel, ok := bin.Y.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok || ident.Name != "time" {
		return false
	}
	switch sel.Sel.Name {
	case "Second", "Minute", "Hour", "Millisecond", "Microsecond", "Nanosecond":
		return true
	}
	return false
}

// findProjectRoot finds the project root by looking for go.mod
func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("Could not find project root (go.mod)")
		}
		dir = parent
	}
}
