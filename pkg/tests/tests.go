// Package tests holds a USB driver scenario shared by package tests: an
// interface specification, a process specification and the analysis facts
// of two drivers.
package tests

import (
	"strings"
	"testing"

	"github.com/stateforward/go-emg/analysis"
	"github.com/stateforward/go-emg/intf"
	"github.com/stateforward/go-emg/process"
)

const Interfaces = `
categories:
  usb:
    containers:
      driver:
        declaration: struct usb_driver driver
        fields:
          probe: "%usb.probe%"
          disconnect: "%usb.disconnect%"
    resources:
      intf:
        declaration: struct usb_interface *intf
    callbacks:
      probe:
        declaration: int (*probe)(%usb.intf%)
      disconnect:
        declaration: void (*disconnect)(%usb.intf%)
functions models:
  usb_register_driver:
    declaration: int usb_register_driver(*%usb.driver%)
    header: linux/usb.h
  usb_deregister:
    declaration: void usb_deregister(*%usb.driver%)
    header: linux/usb.h
`

const Processes = `
environment processes:
  usb_driver:
    category: usb
    comment: Invoke callbacks of a registered usb driver.
    labels:
      driver:
        interface: driver
      probe:
        interface: probe
      disconnect:
        interface: disconnect
      intf:
        interface: intf
      ret:
        declaration: int ret
    process: (!register).[probe].(<success>.[disconnect] | <failed>).(deregister)
    actions:
      register:
        parameters: ["%driver%"]
      probe:
        callback: "%probe%"
        parameters: ["%intf%"]
        callback return value: "%ret%"
        pre-call: ["$ALLOC(%intf%);"]
      success:
        condition: ["%ret% == 0"]
      failed:
        condition: ["%ret% != 0"]
        statements: ["$FREE(%intf%);"]
      disconnect:
        callback: "%disconnect%"
        parameters: ["%intf%"]
        post-call: ["$FREE(%intf%);"]
      deregister:
        parameters: ["%driver%"]
models:
  usb_register_driver:
    comment: Register a usb driver.
    labels:
      driver:
        interface: usb.driver
        parameter: true
      ret:
        declaration: int ret
        retval: true
    process: "[register].<ok>"
    actions:
      register:
        parameters: ["%driver%"]
      ok:
        statements: ["%ret% = 0;"]
  usb_deregister:
    comment: Deregister a usb driver.
    labels:
      driver:
        interface: usb.driver
        parameter: true
    process: "[deregister]"
    actions:
      deregister:
        parameters: ["%driver%"]
entry:
  name: main
  comment: Initialize and exit the module.
  labels:
    ret:
      declaration: int ret
  process: <init>.(<registered>.<exit> | <failed>)
  actions:
    init:
      statements: ["%ret% = foo_init();"]
    registered:
      condition: ["%ret% == 0"]
    exit:
      statements: ["foo_exit();"]
    failed:
      condition: ["%ret% != 0"]
`

// Database returns the facts of two drivers, foo and bar, each with a
// global usb_driver structure.
func Database() *analysis.Database {
	db := analysis.New()
	db.AddFunction("foo.c", "foo_probe", "int foo_probe(struct usb_interface *intf)")
	db.AddFunction("foo.c", "foo_disconnect", "void foo_disconnect(struct usb_interface *intf)")
	db.AddFunction("foo.c", "foo_init", "int foo_init(void)", "usb_register_driver")
	db.AddFunction("foo.c", "foo_exit", "void foo_exit(void)", "usb_deregister")
	db.AddGlobal("foo.c", "foo_driver", analysis.Global{
		Declaration: "struct usb_driver foo_driver",
		Value: &analysis.Initializer{Fields: []analysis.Initializer{
			{Field: "probe", Value: "& foo_probe"},
			{Field: "disconnect", Value: "& foo_disconnect"},
		}},
	})
	db.AddFunction("bar.c", "bar_probe", "int bar_probe(struct usb_interface *intf)")
	db.AddFunction("bar.c", "bar_disconnect", "void bar_disconnect(struct usb_interface *intf)")
	db.AddFunction("bar.c", "bar_init", "int bar_init(void)", "usb_register_driver")
	db.AddGlobal("bar.c", "bar_driver", analysis.Global{
		Declaration: "struct usb_driver bar_driver",
		Value: &analysis.Initializer{Fields: []analysis.Initializer{
			{Field: "probe", Value: "& bar_probe"},
			{Field: "disconnect", Value: "& bar_disconnect"},
		}},
	})
	db.Init = []string{"bar_init", "foo_init"}
	db.Exit = []string{"foo_exit"}
	return db
}

// Collection imports and refines the scenario interfaces.
func Collection(t testing.TB, db *analysis.Database) *intf.Collection {
	t.Helper()
	specification, err := intf.LoadSpecification(strings.NewReader(Interfaces))
	if err != nil {
		t.Fatal(err)
	}
	collection, err := intf.Import(db, specification)
	if err != nil {
		t.Fatal(err)
	}
	collection.Refine()
	return collection
}

// Load parses a process specification.
func Load(t testing.TB, specification string) *process.Processes {
	t.Helper()
	processes, err := process.Load(strings.NewReader(specification))
	if err != nil {
		t.Fatal(err)
	}
	return processes
}
