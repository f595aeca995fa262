package cmodel_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/stateforward/go-emg/cmodel"
	"github.com/stateforward/go-emg/ctype"
)

func TestRender(t *testing.T) {
	model := cmodel.New()
	model.AddHeader("main.c", "pthread.h")
	model.AddVariable("main.c", &cmodel.Variable{Name: "ldv_statevar_1", Declaration: ctype.MustParse("int"), Value: "1"})
	model.AddFunction("main.c", &cmodel.Function{
		Name:        "main",
		Declaration: ctype.MustParse("int (void)").(*ctype.Function),
		Body:        []string{"ldv_usb_1(0);", "return 0;"},
	})
	model.AddFunction("foo.c", &cmodel.Function{
		Name:        "ldv_usb_1",
		Declaration: ctype.MustParse("void (void *)").(*ctype.Function),
		Parameters:  []string{"arg0"},
		Body:        []string{"/* nothing */"},
	})
	model.AddExtern("main.c", "ldv_usb_1")
	if !slices.Equal(model.Files(), []string{"foo.c", "main.c"}) {
		t.Fatalf("unexpected files %v", model.Files())
	}
	var builder strings.Builder
	if err := model.Render(&builder, "main.c"); err != nil {
		t.Fatal(err)
	}
	expected := `#include <pthread.h>

extern void ldv_usb_1(void *arg0);

int ldv_statevar_1 = 1;

int main(void);

int main(void) {
	ldv_usb_1(0);
	return 0;
}
`
	if builder.String() != expected {
		t.Errorf("unexpected rendering:\n%s", builder.String())
	}
	if err := model.Render(&builder, "missing.c"); err == nil {
		t.Error("expected an error for an unknown file")
	}
}
