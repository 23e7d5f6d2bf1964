package defaults_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/ui"
)

// TestVersionConsistency ensures all version references match defaults.Version
func TestVersionConsistency(t *testing.T) {
	if ui.Version != defaults.Version {
		t.Errorf("ui.Version (%s) != defaults.Version (%s)", ui.Version, defaults.Version)
	}

	semverPattern := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9]+)?$`)
	if !semverPattern.MatchString(defaults.Version) {
		t.Errorf("defaults.Version (%s) is not valid semver", defaults.Version)
	}

	versionPattern := regexp.MustCompile(`Version\s*[:=]\s*"(\d+\.\d+\.\d+)"`)
	violations := scanSources(t, func(path string, content string) []string {
		if strings.HasSuffix(path, "defaults.go") {
			return nil
		}
		var out []string
		for i, line := range strings.Split(content, "\n") {
			if m := versionPattern.FindStringSubmatch(line); len(m) > 1 {
				out = append(out, path+":"+strconv.Itoa(i+1)+": hardcoded Version = \""+m[1]+"\"")
			}
		}
		return out
	})

	if len(violations) > 0 {
		t.Errorf("Found %d hardcoded version strings. Use defaults.Version instead:", len(violations))
		for _, v := range violations {
			t.Errorf("  %s", v)
		}
	}
}

// TestNoHardcodedAttempts ensures MaxAttempts fields use defaults.PollAttempts
func TestNoHardcodedAttempts(t *testing.T) {
	violations := scanSources(t, func(path string, content string) []string {
		if strings.HasSuffix(path, "defaults.go") {
			return nil
		}
		fset := token.NewFileSet()
		node, err := parser.ParseFile(fset, path, content, 0)
		if err != nil {
			return nil
		}
		var out []string
		ast.Inspect(node, func(n ast.Node) bool {
			kv, ok := n.(*ast.KeyValueExpr)
			if !ok {
				return true
			}
			if ident, ok := kv.Key.(*ast.Ident); ok && ident.Name == "MaxAttempts" {
				if _, lit := kv.Value.(*ast.BasicLit); lit {
					out = append(out, fset.Position(kv.Value.Pos()).String()+": MaxAttempts = <hardcoded>")
				}
			}
			return true
		})
		return out
	})

	if len(violations) > 0 {
		t.Errorf("Found %d hardcoded attempt budgets. Use defaults.PollAttempts instead:", len(violations))
		for _, v := range violations {
			t.Errorf("  %s", v)
		}
	}
}

func TestPollBudgetOrdering(t *testing.T) {
	if defaults.VirusTotalPartialAfter >= defaults.PollAttempts-1 {
		t.Errorf("VirusTotalPartialAfter (%d) must be below the last attempt index (%d)",
			defaults.VirusTotalPartialAfter, defaults.PollAttempts-1)
	}
}

// scanSources runs check over every non-test Go file under pkg/ and cmd/.
func scanSources(t *testing.T, check func(path, content string) []string) []string {
	t.Helper()
	root := findProjectRoot(t)

	var violations []string
	for _, dir := range []string{"pkg", "cmd"} {
		_ = filepath.Walk(filepath.Join(root, dir), func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			violations = append(violations, check(path, string(content))...)
			return nil
		})
	}
	return violations
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
