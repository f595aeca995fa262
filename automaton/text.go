package automaton

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/stateforward/go-emg/kinds"
	"github.com/stateforward/go-emg/process"
)

var (
	allocation = regexp.MustCompile(`\$(ALLOC|ZALLOC|UALLOC)\(([^()]*)\)`)
	release    = regexp.MustCompile(`\$FREE\(([^()]*)\)`)
	argument   = regexp.MustCompile(`\$ARG([0-9]+)`)
	unknown    = regexp.MustCompile(`\$[A-Z]+`)
)

// Text rewrites a statement or condition of the process: label references
// become variable accesses and memory macros become calls of the model
// allocation functions.
func (a *Automaton) Text(text string) (string, error) {
	result, err := process.ReplaceReferences(text, func(label string, fields []string) (string, error) {
		variable, err := a.Variable(label)
		if err != nil {
			return "", err
		}
		access := variable.Name
		separator := "."
		if kinds.IsKind(variable.Declaration.Kind(), kinds.Pointer) {
			separator = "->"
		}
		for _, field := range fields {
			access += separator + field
			separator = "."
		}
		return access, nil
	})
	if err != nil {
		return "", err
	}
	result = allocation.ReplaceAllStringFunc(result, func(match string) string {
		groups := allocation.FindStringSubmatch(match)
		target := strings.TrimSpace(groups[2])
		switch groups[1] {
		case "ALLOC":
			return fmt.Sprintf("%s = ldv_xmalloc(sizeof(*%s))", target, target)
		case "ZALLOC":
			return fmt.Sprintf("%s = ldv_xzalloc(sizeof(*%s))", target, target)
		}
		return fmt.Sprintf("%s = ldv_xmalloc_unknown_size(0)", target)
	})
	result = release.ReplaceAllString(result, "ldv_free($1)")
	result = argument.ReplaceAllStringFunc(result, func(match string) string {
		index, _ := strconv.Atoi(strings.TrimPrefix(match, "$ARG"))
		if index < 1 {
			// arguments count from one, leave it for the warning below
			return match
		}
		return fmt.Sprintf("arg%d", index-1)
	})
	if leftover := unknown.FindString(result); leftover != "" {
		a.logger.Warn("unknown macro left in statement", "macro", leftover, "statement", text)
	}
	return result, nil
}

// Texts rewrites every statement.
func (a *Automaton) Texts(texts []string) ([]string, error) {
	result := make([]string, 0, len(texts))
	for _, text := range texts {
		rewritten, err := a.Text(text)
		if err != nil {
			return nil, err
		}
		result = append(result, rewritten)
	}
	return result, nil
}
