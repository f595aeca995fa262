package automaton_test

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/stateforward/go-emg/analysis"
	"github.com/stateforward/go-emg/automaton"
	"github.com/stateforward/go-emg/cmodel"
	"github.com/stateforward/go-emg/fsa"
	"github.com/stateforward/go-emg/intf"
	"github.com/stateforward/go-emg/process"
)

const interfaces = `
categories:
  usb:
    containers:
      driver:
        declaration: struct usb_driver driver
        fields:
          probe: "%usb.probe%"
    resources:
      intf:
        declaration: struct usb_interface *intf
    callbacks:
      probe:
        declaration: int (*probe)(%usb.intf%, unsigned long)
`

const processes = `
environment processes:
  usb_driver:
    category: usb
    labels:
      driver:
        interface: driver
      probe:
        interface: probe
      intf:
        interface: intf
      ret:
        declaration: int ret
    process: "[probe].<check>"
    actions:
      probe:
        callback: "%probe%"
        parameters: ["%intf%"]
        callback return value: "%ret%"
        pre-call: ["$ALLOC(%intf%);"]
        post-call: ["$FREE(%intf%);"]
      check:
        condition: ["%ret% == 0"]
        statements: ["%driver.name% = 0;"]
`

type signals struct{}

func (signals) Dispatch(a *automaton.Automaton, state *fsa.State) (*fsa.Code, error) {
	return &fsa.Code{Body: []string{"/* dispatch */"}}, nil
}

func (signals) Receive(a *automaton.Automaton, state *fsa.State) (*fsa.Code, error) {
	return &fsa.Code{Body: []string{"/* receive */"}}, nil
}

func fixture(t *testing.T) (*intf.Collection, *process.Process, automaton.AccessMap) {
	t.Helper()
	db := analysis.New()
	db.AddFunction("foo.c", "foo_probe", "int foo_probe(struct usb_interface *intf, unsigned long flags)")
	db.AddGlobal("foo.c", "foo_driver", analysis.Global{
		Declaration: "struct usb_driver foo_driver",
		Value:       &analysis.Initializer{Fields: []analysis.Initializer{{Field: "probe", Value: "& foo_probe"}}},
	})
	specification, err := intf.LoadSpecification(strings.NewReader(interfaces))
	if err != nil {
		t.Fatal(err)
	}
	collection, err := intf.Import(db, specification)
	if err != nil {
		t.Fatal(err)
	}
	collection.Refine()
	loaded, err := process.Load(strings.NewReader(processes))
	if err != nil {
		t.Fatal(err)
	}
	probe, _ := collection.Get("usb.probe")
	driver, _ := collection.Get("usb.driver")
	access := automaton.AccessMap{
		"%probe%":  {"usb.probe": collection.Implementations(probe, true)[0]},
		"%driver%": {"usb.driver": collection.Implementations(driver, true)[0]},
		"%intf%":   {"usb.intf": nil},
	}
	return collection, loaded.Environment[0], access
}

func TestVariables(t *testing.T) {
	collection, p, access := fixture(t)
	a, err := automaton.New(1, p, access, collection)
	if err != nil {
		t.Fatal(err)
	}
	declarations := []string{}
	for _, variable := range a.Variables() {
		declarations = append(declarations, variable.Define())
	}
	expected := []string{
		"struct usb_driver *ldv_1_driver_driver = & foo_driver;",
		"struct usb_interface *ldv_1_intf_intf;",
		"int (*ldv_1_probe_probe)(struct usb_interface *, unsigned long) = & foo_probe;",
		"int ldv_1_ret_default;",
		"int ldv_statevar_1;",
	}
	if !slices.Equal(declarations, expected) {
		t.Errorf("expected\n%s\ngot\n%s", strings.Join(expected, "\n"), strings.Join(declarations, "\n"))
	}
	if a.File() != "foo.c" {
		t.Errorf("expected automaton in foo.c, got %q", a.File())
	}
	if a.Name() != "ldv_usb_driver_1" {
		t.Errorf("unexpected control function name %s", a.Name())
	}
}

func TestGenerateCode(t *testing.T) {
	collection, p, access := fixture(t)
	a, err := automaton.New(3, p, access, collection)
	if err != nil {
		t.Fatal(err)
	}
	call, _ := a.FSA.State(1)
	code, err := a.GenerateCode(call, signals{})
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{
		"/* call retval probe */",
		"ldv_3_intf_intf = ldv_xmalloc(sizeof(*ldv_3_intf_intf));",
		"ldv_3_ret_default = foo_probe(ldv_3_intf_intf, ldv_3_1_param_1);",
		"ldv_free(ldv_3_intf_intf);",
	}
	if !slices.Equal(code.Body, expected) {
		t.Errorf("expected\n%s\ngot\n%s", strings.Join(expected, "\n"), strings.Join(code.Body, "\n"))
	}
	if code.File != "foo.c" {
		t.Errorf("expected the call to be placed in foo.c, got %q", code.File)
	}
	again, err := a.GenerateCode(call, signals{})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(code.Guard, again.Guard) || !slices.Equal(code.Body, again.Body) {
		t.Error("generating code twice gave different results")
	}
	if !slices.ContainsFunc(a.Variables(), func(v *cmodel.Variable) bool { return v.Name == "ldv_3_1_param_1" }) {
		t.Error("expected a variable for the unmatched parameter")
	}

	check, _ := a.FSA.State(2)
	code, err = a.GenerateCode(check, signals{})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(code.Guard, []string{"ldv_3_ret_default == 0"}) {
		t.Errorf("unexpected guard %v", code.Guard)
	}
	if !slices.Equal(code.Body, []string{"/* condition check */", "ldv_3_driver_driver->name = 0;"}) {
		t.Errorf("unexpected body %v", code.Body)
	}
}

func TestCallWithoutImplementation(t *testing.T) {
	collection, p, access := fixture(t)
	delete(access, "%probe%")
	a, err := automaton.New(2, p, access, collection)
	if err != nil {
		t.Fatal(err)
	}
	call, _ := a.FSA.State(1)
	code, err := a.GenerateCode(call, signals{})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(code.Body, []string{"/* Skip callback probe without implementations */"}) {
		t.Errorf("unexpected body %v", code.Body)
	}
}

func TestText(t *testing.T) {
	collection, p, access := fixture(t)
	a, err := automaton.New(1, p, access, collection)
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]string{
		"$UALLOC(%intf%);":   "ldv_1_intf_intf = ldv_xmalloc_unknown_size(0);",
		"$ZALLOC(%driver%);": "ldv_1_driver_driver = ldv_xzalloc(sizeof(*ldv_1_driver_driver));",
		"%ret% = $ARG2;":     "ldv_1_ret_default = arg1;",
		"%driver.dev.name%":  "ldv_1_driver_driver->dev.name",
		"ldv_assume(%ret%);": "ldv_assume(ldv_1_ret_default);",
	}
	for text, expected := range cases {
		got, err := a.Text(text)
		if err != nil {
			t.Fatal(err)
		}
		if got != expected {
			t.Errorf("%q: expected %q, got %q", text, expected, got)
		}
	}

	t.Run("argument zero", func(t *testing.T) {
		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))
		a, err := automaton.New(1, p.Clone(), access, collection, automaton.Config{Logger: logger})
		if err != nil {
			t.Fatal(err)
		}
		got, err := a.Text("%ret% = $ARG0;")
		if err != nil {
			t.Fatal(err)
		}
		if got != "ldv_1_ret_default = $ARG0;" {
			t.Errorf("expected $ARG0 to stay, got %q", got)
		}
		if !strings.Contains(logs.String(), "unknown macro left in statement") {
			t.Errorf("expected a warning, got %q", logs.String())
		}
	})
	if _, err := a.Text("%missing% = 1;"); !errors.Is(err, process.ErrUnresolved) {
		t.Errorf("expected unresolved reference error, got %v", err)
	}
}
