package analysis_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/stateforward/go-emg/analysis"
)

const database = `{
  "functions": {
    "drivers/foo.c": {
      "foo_probe": {"declaration": "int foo_probe(struct usb_interface *intf)", "calls": {"usb_get_intfdata": ["drivers/foo.c:10"]}},
      "foo_init": {"declaration": "int foo_init(void)", "calls": {"usb_register_driver": ["drivers/foo.c:40"]}}
    },
    "drivers/bar.c": {
      "foo_probe": {"declaration": "int foo_probe(int)"}
    }
  },
  "global variable initializations": {
    "drivers/foo.c": {
      "foo_driver": {
        "declaration": "struct usb_driver foo_driver",
        "value": {"fields": [{"field": "probe", "value": "& foo_probe"}]}
      }
    }
  },
  "macro expansions": {"module_exit": {"drivers/foo.c": {"args": [["foo_exit"]]}}},
  "init": ["foo_init"]
}`

func TestLoad(t *testing.T) {
	db, err := analysis.Load(strings.NewReader(database))
	if err != nil {
		t.Fatal(err)
	}
	if files := db.Files(); !slices.Equal(files, []string{"drivers/bar.c", "drivers/foo.c"}) {
		t.Fatalf("unexpected files %v", files)
	}
	if _, file, ok := db.Function("foo_probe"); !ok || file != "drivers/bar.c" {
		t.Fatalf("expected first file in sorted order, got %q", file)
	}
	signature, err := db.Signature("foo_init")
	if err != nil {
		t.Fatal(err)
	}
	if signature.Identifier() != "int (void)" {
		t.Errorf("unexpected signature %q", signature.Identifier())
	}
	if callees := db.Callees("foo_init"); !slices.Equal(callees, []string{"usb_register_driver"}) {
		t.Errorf("unexpected callees %v", callees)
	}
	if name, ok := db.FunctionReference("& foo_probe"); !ok || name != "foo_probe" {
		t.Errorf("expected function reference, got %q", name)
	}
	if _, ok := db.FunctionReference("NULL"); ok {
		t.Error("NULL is not a function")
	}
	if entries := db.EntryFunctions(); !slices.Equal(entries, []string{"foo_exit", "foo_init"}) {
		t.Errorf("unexpected entry functions %v", entries)
	}
	if _, err := db.Signature("missing"); err == nil {
		t.Error("expected an error for an unknown function")
	}
}

func TestBuild(t *testing.T) {
	db := analysis.New()
	db.AddFunction("a.c", "f", "void f(void)", "g", "h")
	if callees := db.Callees("f"); !slices.Equal(callees, []string{"g", "h"}) {
		t.Errorf("unexpected callees %v", callees)
	}
	if names := db.FunctionNames(); !slices.Equal(names, []string{"f"}) {
		t.Errorf("unexpected names %v", names)
	}
}
