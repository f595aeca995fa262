package kinds_test

import (
	"testing"

	"github.com/stateforward/go-emg/kinds"
)

func TestKinds(t *testing.T) {
	if !kinds.IsKind(kinds.Dispatch, kinds.Action) {
		t.Errorf("Dispatch should be an Action")
	}
	if kinds.IsKind(kinds.Dispatch, kinds.Declaration) {
		t.Errorf("Dispatch should not be a Declaration")
	}
	if !kinds.IsKind(kinds.CallRetval, kinds.Call) {
		t.Errorf("CallRetval should be a Call")
	}
	if !kinds.IsKind(kinds.CallRetval, kinds.Node) {
		t.Errorf("CallRetval should be a Node")
	}
	if kinds.IsKind(kinds.Call, kinds.CallRetval) {
		t.Errorf("Call should not be a CallRetval")
	}
	if !kinds.IsKind(kinds.Container, kinds.Interface) {
		t.Errorf("Container should be an Interface")
	}
	if kinds.IsKind(kinds.Sequence, kinds.Action) {
		t.Errorf("Sequence should not be an Action")
	}
	if !kinds.IsKind(kinds.InterfaceReference, kinds.Declaration) {
		t.Errorf("InterfaceReference should be a Declaration")
	}
}

func TestName(t *testing.T) {
	if kinds.Name(kinds.Receive) != "receive" {
		t.Errorf("unexpected name %q", kinds.Name(kinds.Receive))
	}
	if kinds.Name(1<<60) != "unknown" {
		t.Errorf("unexpected name for unknown kind")
	}
}
