package dot

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackforge/pkg/graph"
	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/requirement"
)

func testGraph(t testing.TB) *graph.DepsGraph {
	c := recipe.NewCatalog("test")
	c.AddFunc("app/1.0", &recipe.Func{Requires: []requirement.Requirement{
		requirement.MustParse("zlib/1.3"),
		requirement.MustParse("cmake/3.27", requirement.AsTool()),
		requirement.MustParse("fmt/10.2", requirement.Private()),
	}})
	c.AddFunc("zlib/1.3", nil)
	c.AddFunc("cmake/3.27", nil)
	c.AddFunc("fmt/10.2", nil)
	g, err := (&graph.Builder{Evaluator: c, Logger: log.New(io.Discard)}).
		Build(context.Background(), graph.Consumer(requirement.MustParse("app/1.0")), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestToDOT(t *testing.T) {
	g := testGraph(t)
	g.ByName("zlib")[0].Skip = true

	out := ToDOT(g, Options{Status: func(n *graph.Node) string {
		if n.Virtual {
			return ""
		}
		return "Cache"
	}})

	for _, want := range []string{
		`"consumer" [label="consumer", shape=ellipse`,
		`"app/1.0" [label="app/1.0\nCache"`,
		`"cmake/3.27 (build)" [label="cmake/3.27 (build)\nCache", style="rounded,filled,dashed", fillcolor=lightgrey`,
		`"zlib/1.3" [label="zlib/1.3\nCache", style="rounded,filled,dotted"]`,
		`"app/1.0" -> "cmake/3.27 (build)" [style=dashed];`,
		`"app/1.0" -> "fmt/10.2" [color=grey];`,
		`"consumer" -> "app/1.0";`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT output missing %s\n%s", want, out)
		}
	}
}

func TestToDOTDetailed(t *testing.T) {
	out := ToDOT(testGraph(t), Options{Detailed: true})
	if !strings.Contains(out, `label="zlib/1.3\nvia app/1.0"`) {
		t.Errorf("detailed label should name the requirer:\n%s", out)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	got := string(normalizeViewBox(in))
	if !strings.HasPrefix(got, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.00 50.00" width="100" height="50">`) {
		t.Errorf("normalizeViewBox = %s", got)
	}
	if same := normalizeViewBox([]byte("<svg/>")); string(same) != "<svg/>" {
		t.Errorf("an svg without viewBox must be unchanged, got %s", same)
	}
}

func ExampleToDOT() {
	c := recipe.NewCatalog("example")
	c.AddFunc("zlib/1.3", nil)
	g, _ := (&graph.Builder{Evaluator: c, Logger: log.New(io.Discard)}).
		Build(context.Background(), graph.Consumer(requirement.MustParse("zlib/1.3")), nil)

	for _, line := range strings.Split(ToDOT(g, Options{}), "\n") {
		if strings.Contains(line, "->") {
			fmt.Println(strings.TrimSpace(line))
		}
	}
	// Output:
	// "consumer" -> "zlib/1.3";
}
