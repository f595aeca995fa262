package ctype_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/stateforward/go-emg/ctype"
	"github.com/stateforward/go-emg/kinds"
)

func TestParse(t *testing.T) {
	cases := []struct {
		text       string
		identifier string
		name       string
		kind       uint64
	}{
		{"int x", "int", "x", kinds.Primitive},
		{"unsigned long", "unsigned long", "", kinds.Primitive},
		{"const struct usb_device_id *id", "struct usb_device_id *", "id", kinds.Pointer},
		{"int (*probe)(struct usb_interface *, int)", "int (*)(struct usb_interface *, int)", "probe", kinds.Pointer},
		{"void release(void)", "void (void)", "release", kinds.Function},
		{"struct pci_driver drivers[4]", "struct pci_driver [4]", "drivers", kinds.Array},
		{"char *names[]", "char *[]", "names", kinds.Array},
		{"int usb_register_driver(*%usb.driver%, const char *, ...)", "int (%usb.driver% *, char *, ...)", "usb_register_driver", kinds.Function},
		{"size_t len", "size_t", "len", kinds.Primitive},
		{"void (*(*handler)(int))(void)", "void (*(*)(int))(void)", "handler", kinds.Pointer},
	}
	for _, c := range cases {
		t.Run(c.text, func(t *testing.T) {
			declaration, name, err := ctype.Parse(c.text)
			if err != nil {
				t.Fatal(err)
			}
			if declaration.Identifier() != c.identifier {
				t.Errorf("expected identifier %q, got %q", c.identifier, declaration.Identifier())
			}
			if name != c.name {
				t.Errorf("expected name %q, got %q", c.name, name)
			}
			if declaration.Kind() != c.kind {
				t.Errorf("expected kind %s, got %s", kinds.Name(c.kind), kinds.Name(declaration.Kind()))
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{"", "int (", "%usb.driver", "struct *x", "int x[3", "*int"} {
		if _, _, err := ctype.Parse(text); !errors.Is(err, ctype.ErrSyntax) {
			t.Errorf("expected syntax error for %q, got %v", text, err)
		}
	}
}

func TestDeclare(t *testing.T) {
	probe := ctype.MustParse("int (*)(struct usb_interface *)")
	if got := ctype.Declare(probe, "ldv_1_probe"); got != "int (*ldv_1_probe)(struct usb_interface *)" {
		t.Errorf("unexpected declaration %q", got)
	}
	function, ok := ctype.Signature(probe)
	if !ok {
		t.Fatal("expected a function signature")
	}
	if got := function.Define("foo_probe", []string{"arg0"}); got != "int foo_probe(struct usb_interface *arg0)" {
		t.Errorf("unexpected definition %q", got)
	}
	empty := ctype.MustParse("void (void)").(*ctype.Function)
	if got := empty.Define("f", nil); got != "void f(void)" {
		t.Errorf("unexpected definition %q", got)
	}
}

func TestMatch(t *testing.T) {
	structure := ctype.MustParse("struct usb_interface")
	pointer := ctype.MustParse("struct usb_interface *")
	if prefix, ok := ctype.Match(pointer, pointer); !ok || prefix != "" {
		t.Errorf("expected direct match, got %q %v", prefix, ok)
	}
	if prefix, ok := ctype.Match(pointer, structure); !ok || prefix != "&" {
		t.Errorf("expected address match, got %q %v", prefix, ok)
	}
	if prefix, ok := ctype.Match(structure, pointer); !ok || prefix != "*" {
		t.Errorf("expected dereference match, got %q %v", prefix, ok)
	}
	function := ctype.MustParse("int (int)")
	if prefix, ok := ctype.Match(ctype.TakePointer(function), function); !ok || prefix != "" {
		t.Errorf("expected function decay, got %q %v", prefix, ok)
	}
	if _, ok := ctype.Match(structure, ctype.MustParse("int")); ok {
		t.Error("expected mismatch")
	}
}

func TestReplace(t *testing.T) {
	callback := ctype.MustParse("int (*)(%usb.interface%, %usb.id% *)")
	if callback.Clean() {
		t.Fatal("expected references to make the declaration dirty")
	}
	if refs := ctype.References(callback); !slices.Equal(refs, []string{"usb.interface", "usb.id"}) {
		t.Fatalf("unexpected references %v", refs)
	}
	replaced, changed := ctype.Replace(callback, func(reference *ctype.InterfaceReference) ctype.Declaration {
		if reference.Interface == "usb.interface" {
			return ctype.MustParse("struct usb_interface *")
		}
		return nil
	})
	if !changed {
		t.Fatal("expected a replacement")
	}
	if replaced.Identifier() != "int (*)(struct usb_interface *, %usb.id% *)" {
		t.Errorf("unexpected identifier %q", replaced.Identifier())
	}
	if callback.Identifier() != "int (*)(%usb.interface%, %usb.id% *)" {
		t.Errorf("original declaration was mutated: %q", callback.Identifier())
	}
	structure := &ctype.Structure{Name: "usb_driver"}
	structure.AddField("probe", callback)
	if structure.Clean() {
		t.Error("expected structure with dirty field to be dirty")
	}
	cleaned, _ := ctype.Replace(structure, func(reference *ctype.InterfaceReference) ctype.Declaration {
		return ctype.MustParse("int")
	})
	if !cleaned.Clean() {
		t.Error("expected cleaned structure")
	}
}
