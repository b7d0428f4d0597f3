package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/values"
)

const linux = `
[settings]
os = "Linux"
compiler = "gcc"
"compiler.version" = "13"
"zlib:build_type" = "Debug"

[options]
"*:shared" = "True"
"zlib:shared!" = "False"

[tool_requires]
"*" = ["cmake/3.27", "ninja/1.11"]
"app" = "protobuf/3.21"
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(linux), "linux")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var keys []string
	for _, a := range p.Settings {
		keys = append(keys, a.String())
	}
	want := []string{"os=Linux", "compiler=gcc", "compiler.version=13", "zlib:build_type=Debug"}
	if len(keys) != len(want) {
		t.Fatalf("settings = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("settings[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
	if p.Settings[0].Origin != values.OriginProfile || p.Settings[0].Source != "linux" {
		t.Errorf("provenance = %v/%s", p.Settings[0].Origin, p.Settings[0].Source)
	}

	if len(p.Options) != 2 || !p.Options[1].Important || p.Options[1].Pattern != "zlib" {
		t.Errorf("options = %+v", p.Options)
	}
	if len(p.ToolRequires) != 3 || p.ToolRequires[2].Pattern != "app" || p.ToolRequires[2].Ref.String() != "protobuf/3.21" {
		t.Errorf("tool_requires = %+v", p.ToolRequires)
	}
}

func TestSettingsFor(t *testing.T) {
	p, err := Parse([]byte(linux), "linux")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.SettingsFor(true); len(got) != len(p.Settings) {
		t.Errorf("build settings without a [build_settings] table = %v", got)
	}

	p, err = Parse([]byte("[settings]\nos = \"Windows\"\n[build_settings]\nos = \"Linux\"\n"), "cross")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.SettingsFor(true); len(got) != 1 || got[0].Value != "Linux" {
		t.Errorf("build settings = %v", got)
	}
	if got := p.SettingsFor(false); len(got) != 1 || got[0].Value != "Windows" {
		t.Errorf("host settings = %v", got)
	}
}

func TestApply(t *testing.T) {
	p, err := Parse([]byte(linux), "linux")
	if err != nil {
		t.Fatal(err)
	}
	c := p.Clone()
	if err := c.Apply([]string{"build_type=Release"}, []string{"zlib:shared!=True"}); err != nil {
		t.Fatal(err)
	}
	if len(p.Options) != 2 {
		t.Error("Apply on a clone modified the original")
	}
	last := c.Options[len(c.Options)-1]
	if last.Origin != values.OriginCLI || !last.Important || last.Value != "True" {
		t.Errorf("appended option = %+v", last)
	}

	got, _ := values.Merge(nil, c.Options, ref.MustParse("zlib/1.3"), false)
	if v := got.GetSafe("shared", ""); v != "True" {
		t.Errorf("zlib shared = %s, want the command line value", v)
	}

	if err := c.Apply([]string{"no-equals"}, nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad assignment: got %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "[settings"},
		{"unknown table", "[env]\nCC = \"gcc\"\n"},
		{"non-string setting", "[settings]\nos = 1\n"},
		{"bad tool reference", "[tool_requires]\n\"*\" = [\"cmake\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.src), "bad"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default")
	if err := os.WriteFile(path, []byte(linux), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil || len(p.Settings) != 4 {
		t.Fatalf("Load = %+v, %v", p, err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing profile: got %v", err)
	}
}
