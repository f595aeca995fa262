package ctype

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var ErrSyntax = errors.New("declaration syntax error")

var qualifiers = map[string]bool{
	"const": true, "volatile": true, "restrict": true, "static": true,
	"extern": true, "inline": true, "register": true, "__user": true,
	"__iomem": true, "__rcu": true,
}

var primitives = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"_Bool": true, "bool": true,
}

// Parse reads a C declaration such as "int (*probe)(struct usb_interface *,
// %usb.device_id%)" and returns its type and the declared name, which is
// empty for abstract declarations.
func Parse(text string) (Declaration, string, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, "", err
	}
	p := &parser{tokens: tokens}
	declaration, name, err := p.declaration()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q: %w", ErrSyntax, text, err)
	}
	if p.pos != len(p.tokens) {
		return nil, "", fmt.Errorf("%w: %q: unexpected %q", ErrSyntax, text, p.peek())
	}
	return declaration, name, nil
}

// MustParse is Parse for declarations known to be valid.
func MustParse(text string) Declaration {
	declaration, _, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return declaration
}

func tokenize(text string) ([]string, error) {
	tokens := []string{}
	runes := []rune(text)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '%':
			end := i + 1
			for end < len(runes) && runes[end] != '%' {
				end++
			}
			if end == len(runes) {
				return nil, fmt.Errorf("%w: unterminated interface reference in %q", ErrSyntax, text)
			}
			tokens = append(tokens, string(runes[i:end+1]))
			i = end + 1
		case r == '.' && strings.HasPrefix(string(runes[i:]), "..."):
			tokens = append(tokens, "...")
			i += 3
		case strings.ContainsRune("*()[],", r):
			tokens = append(tokens, string(r))
			i++
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			start := i
			for i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			tokens = append(tokens, string(runes[start:i]))
		default:
			return nil, fmt.Errorf("%w: unexpected character %q in %q", ErrSyntax, r, text)
		}
	}
	return tokens, nil
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *parser) lookahead(offset int) string {
	if p.pos+offset < len(p.tokens) {
		return p.tokens[p.pos+offset]
	}
	return ""
}

func (p *parser) next() string {
	token := p.peek()
	p.pos++
	return token
}

func (p *parser) expect(token string) error {
	if p.peek() != token {
		return fmt.Errorf("expected %q, got %q", token, p.peek())
	}
	p.pos++
	return nil
}

func isIdentifier(token string) bool {
	if token == "" {
		return false
	}
	first := []rune(token)[0]
	return first == '_' || unicode.IsLetter(first)
}

func (p *parser) declaration() (Declaration, string, error) {
	// "*%usb.driver%" is a pointer to the interface declaration
	stars := 0
	for p.peek() == "*" {
		p.next()
		stars++
	}
	base, err := p.specifiers()
	if err != nil {
		return nil, "", err
	}
	if stars > 0 {
		if _, ok := base.(*InterfaceReference); !ok {
			return nil, "", fmt.Errorf("pointer before type specifier %q", base.Identifier())
		}
		for ; stars > 0; stars-- {
			base = &Pointer{Points: base}
		}
	}
	return p.declarator(base)
}

func (p *parser) specifiers() (Declaration, error) {
	var words []string
	var result Declaration
	for {
		token := p.peek()
		switch {
		case qualifiers[token]:
			p.next()
		case token == "struct" || token == "union" || token == "enum":
			if result != nil || len(words) > 0 {
				return nil, fmt.Errorf("unexpected %q", token)
			}
			p.next()
			name := p.next()
			if !isIdentifier(name) {
				return nil, fmt.Errorf("expected %s tag, got %q", token, name)
			}
			switch token {
			case "struct":
				result = &Structure{Name: name}
			case "union":
				result = &Union{Name: name}
			default:
				result = &Primitive{Name: "enum " + name}
			}
		case strings.HasPrefix(token, "%"):
			if result != nil || len(words) > 0 {
				return nil, fmt.Errorf("unexpected %q", token)
			}
			p.next()
			result = &InterfaceReference{Interface: strings.Trim(token, "%")}
		case primitives[token]:
			if result != nil {
				return nil, fmt.Errorf("unexpected %q", token)
			}
			words = append(words, p.next())
		case isIdentifier(token) && result == nil && len(words) == 0:
			// typedef name
			result = &Primitive{Name: p.next()}
		default:
			if len(words) > 0 {
				return &Primitive{Name: strings.Join(words, " ")}, nil
			}
			if result == nil {
				return nil, fmt.Errorf("missing type specifier before %q", token)
			}
			return result, nil
		}
	}
}

func (p *parser) declarator(base Declaration) (Declaration, string, error) {
	for p.peek() == "*" {
		p.next()
		for qualifiers[p.peek()] {
			p.next()
		}
		base = &Pointer{Points: base}
	}
	return p.direct(base)
}

func (p *parser) direct(base Declaration) (Declaration, string, error) {
	var name string
	var inner []string
	switch {
	case p.peek() == "(" && (p.lookahead(1) == "*" || p.lookahead(1) == "("):
		end, err := p.closing(p.pos)
		if err != nil {
			return nil, "", err
		}
		inner = p.tokens[p.pos+1 : end]
		p.pos = end + 1
	case isIdentifier(p.peek()) && !qualifiers[p.peek()] && !primitives[p.peek()]:
		name = p.next()
	}

	var suffixes []func(Declaration) Declaration
loop:
	for {
		switch p.peek() {
		case "[":
			p.next()
			size := -1
			for p.peek() != "]" {
				if p.peek() == "" {
					return nil, "", fmt.Errorf("unterminated array bound")
				}
				if value, err := strconv.Atoi(p.next()); err == nil {
					size = value
				}
			}
			p.next()
			suffixes = append(suffixes, func(element Declaration) Declaration {
				return &Array{Element: element, Size: size}
			})
		case "(":
			parameters, variadic, err := p.parameters()
			if err != nil {
				return nil, "", err
			}
			suffixes = append(suffixes, func(result Declaration) Declaration {
				return &Function{Return: result, Parameters: parameters, Variadic: variadic}
			})
		default:
			break loop
		}
	}
	for i := len(suffixes) - 1; i >= 0; i-- {
		base = suffixes[i](base)
	}
	if inner != nil {
		nested := &parser{tokens: inner}
		declaration, nestedName, err := nested.declarator(base)
		if err != nil {
			return nil, "", err
		}
		if nested.pos != len(inner) {
			return nil, "", fmt.Errorf("unexpected %q in nested declarator", nested.peek())
		}
		return declaration, nestedName, nil
	}
	return base, name, nil
}

func (p *parser) closing(open int) (int, error) {
	depth := 0
	for i := open; i < len(p.tokens); i++ {
		switch p.tokens[i] {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced parentheses")
}

func (p *parser) parameters() ([]Declaration, bool, error) {
	if err := p.expect("("); err != nil {
		return nil, false, err
	}
	parameters := []Declaration{}
	if p.peek() == ")" {
		p.next()
		return parameters, false, nil
	}
	if p.peek() == "void" && p.lookahead(1) == ")" {
		p.pos += 2
		return parameters, false, nil
	}
	variadic := false
	for {
		if p.peek() == "..." {
			p.next()
			variadic = true
		} else {
			parameter, _, err := p.declaration()
			if err != nil {
				return nil, false, err
			}
			parameters = append(parameters, parameter)
		}
		switch p.next() {
		case ",":
			if variadic {
				return nil, false, fmt.Errorf("parameters after ...")
			}
		case ")":
			return parameters, variadic, nil
		default:
			return nil, false, fmt.Errorf("expected , or ) in parameter list")
		}
	}
}
