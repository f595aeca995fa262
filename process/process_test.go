package process_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stateforward/go-emg/kinds"
	"github.com/stateforward/go-emg/process"
)

const specification = `
environment processes:
  usb_driver:
    category: usb
    comment: Invoke usb driver callbacks.
    labels:
      driver:
        interface: driver
      probe:
        interface: [probe]
      intf:
        interface: usb.intf
      ret:
        declaration: int ret
    process: (!register).{main} | <skip>
    actions:
      register:
        parameters: ["%driver%"]
      main:
        process: "[probe].(<ok>.[deregister] | <fail>.{main})"
      probe:
        callback: "%probe%"
        parameters: ["%intf%"]
        callback return value: "%ret%"
      ok:
        condition: ["%ret% == 0"]
      fail:
        condition: ["%ret% != 0"]
      skip:
        comment: Nothing registered.
      deregister:
        parameters: ["%driver%"]
models:
  usb_register_driver:
    labels:
      driver:
        interface: usb.driver
        parameter: true
    process: "[register]"
    actions:
      register:
        parameters: ["%driver%"]
entry:
  name: main
  process:
    type: sequence
    children:
      - {type: action, name: init}
      - {type: receive, name: deregister}
  actions:
    init:
      statements: ["ldv_init();"]
    deregister: {}
`

func TestLoad(t *testing.T) {
	processes, err := process.Load(strings.NewReader(specification))
	if err != nil {
		t.Fatal(err)
	}
	if len(processes.Environment) != 1 || len(processes.Models) != 1 || processes.Entry == nil {
		t.Fatalf("unexpected processes %+v", processes)
	}
	driver := processes.Environment[0]
	if driver.Kind != kinds.EventProcess || driver.String() != "usb/usb_driver" {
		t.Errorf("unexpected process %s of kind %s", driver, kinds.Name(driver.Kind))
	}
	expected := map[string]uint64{
		"register":   kinds.Receive,
		"main":       kinds.Subprocess,
		"probe":      kinds.CallRetval,
		"ok":         kinds.Condition,
		"fail":       kinds.Condition,
		"skip":       kinds.Condition,
		"deregister": kinds.Dispatch,
	}
	for name, kind := range expected {
		action, err := driver.Action(name)
		if err != nil {
			t.Fatal(err)
		}
		if action.Kind != kind {
			t.Errorf("expected %s to be %s, got %s", name, kinds.Name(kind), kinds.Name(action.Kind))
		}
	}
	if got := driver.Labels["probe"].Interfaces; !slices.Equal(got, []string{"usb.probe"}) {
		t.Errorf("expected qualified interfaces, got %v", got)
	}
	root := driver.Tree.Node(driver.Tree.Root)
	if root.Kind != kinds.Choice || len(root.Children) != 2 {
		t.Errorf("unexpected root %+v", root)
	}
	if got := processes.Entry.Actions["init"].Kind; got != kinds.Condition {
		t.Errorf("expected tree action to become a condition, got %s", kinds.Name(got))
	}
}

func TestPeers(t *testing.T) {
	processes, err := process.Load(strings.NewReader(specification))
	if err != nil {
		t.Fatal(err)
	}
	register := processes.Environment[0].Actions["register"]
	if !slices.Equal(register.Signal.Peers, []process.Peer{{Process: "usb_register_driver", Action: "register"}}) {
		t.Errorf("unexpected receive peers %v", register.Signal.Peers)
	}
	dispatch := processes.Models[0].Actions["register"]
	if !slices.Equal(dispatch.Signal.Peers, []process.Peer{{Process: "usb_driver", Action: "register"}}) {
		t.Errorf("unexpected dispatch peers %v", dispatch.Signal.Peers)
	}
	deregister := processes.Environment[0].Actions["deregister"]
	if !slices.Equal(deregister.Signal.Peers, []process.Peer{{Process: "main", Action: "deregister"}}) {
		t.Errorf("unexpected deregister peers %v", deregister.Signal.Peers)
	}
}

func TestAccesses(t *testing.T) {
	processes, err := process.Load(strings.NewReader(specification))
	if err != nil {
		t.Fatal(err)
	}
	accesses := processes.Environment[0].Accesses()
	expressions := []string{}
	for _, access := range accesses {
		expressions = append(expressions, access.Expression+"="+access.Interface)
	}
	expected := []string{"%driver%=usb.driver", "%intf%=usb.intf", "%probe%=usb.probe", "%ret%="}
	if !slices.Equal(expressions, expected) {
		t.Errorf("expected %v, got %v", expected, expressions)
	}
}

func TestClone(t *testing.T) {
	processes, err := process.Load(strings.NewReader(specification))
	if err != nil {
		t.Fatal(err)
	}
	original := processes.Environment[0]
	clone := original.Clone()
	clone.Labels["probe"].Interfaces[0] = "usb.other"
	if original.Labels["probe"].Interfaces[0] != "usb.probe" {
		t.Error("clone shares labels with the original")
	}
	if clone.Actions["probe"] != original.Actions["probe"] {
		t.Error("expected actions to be shared")
	}
}

func TestReplaceReferences(t *testing.T) {
	text, err := process.ReplaceReferences("%ret% = %dev.ops.probe%;", func(label string, fields []string) (string, error) {
		return strings.Join(append([]string{"ldv_" + label}, fields...), "->"), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if text != "ldv_ret = ldv_dev->ops->probe;" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
		err  error
	}{
		{"undefined action", `
environment processes:
  p:
    process: "[missing]"
`, process.ErrUnresolved},
		{"undefined label", `
environment processes:
  p:
    process: "<c>"
    actions:
      c:
        condition: ["%nothing% > 0"]
`, process.ErrUnresolved},
		{"bad expression", `
environment processes:
  p:
    process: "[a].(<b>"
    actions:
      a: {}
      b: {}
`, process.ErrMalformed},
		{"unknown node type", `
environment processes:
  p:
    process:
      type: loop
      name: a
    actions:
      a: {}
`, process.ErrMalformed},
		{"conflicting uses", `
environment processes:
  p:
    process: "[a].(a)"
    actions:
      a: {}
`, process.ErrMalformed},
		{"subprocess without body", `
environment processes:
  p:
    process: "{a}"
    actions:
      a: {}
`, process.ErrUnresolved},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := process.Load(strings.NewReader(c.text)); !errors.Is(err, c.err) {
				t.Errorf("expected %v, got %v", c.err, err)
			}
		})
	}
}
