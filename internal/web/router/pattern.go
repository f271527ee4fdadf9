package router

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Converter turns a placeholder segment into a typed value and back
type Converter struct {
	Name  string
	Regex string
	// ToValue converts a matched segment; a nil func keeps the string
	ToValue func(string) (any, error)

	exact *regexp.Regexp
}

func newConverter(name, regex string, toValue func(string) (any, error)) Converter {
	return Converter{
		Name:    name,
		Regex:   regex,
		ToValue: toValue,
		exact:   regexp.MustCompile(`^(?:` + regex + `)$`),
	}
}

// ToURL renders v for reversal and verifies it matches the converter
func (c Converter) ToURL(v any) (string, error) {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	if !c.exact.MatchString(s) {
		return "", fmt.Errorf("value %q does not match converter %s", s, c.Name)
	}
	return s, nil
}

// converters are the placeholder types accepted in patterns
var converters = map[string]Converter{
	"str":  newConverter("str", `[^/]+`, nil),
	"slug": newConverter("slug", `[-a-zA-Z0-9_]+`, nil),
	"path": newConverter("path", `.+`, nil),
	"int": newConverter("int", `[0-9]+`, func(s string) (any, error) {
		return strconv.Atoi(s)
	}),
	"uuid": newConverter("uuid", `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`, func(s string) (any, error) {
		return uuid.Parse(s)
	}),
}

var paramName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// segment is either literal text or a typed placeholder
type segment struct {
	literal   string
	param     string
	converter Converter
}

// pattern is a compiled route pattern
type pattern struct {
	raw      string
	segments []segment
	regex    *regexp.Regexp
}

// compilePattern parses raw. With full set the whole remaining path must
// match; otherwise raw is a prefix.
func compilePattern(raw string, full bool) (*pattern, error) {
	if strings.HasPrefix(raw, "/") {
		return nil, &PatternError{Pattern: raw, Reason: "must not start with '/'"}
	}

	p := &pattern{raw: raw}
	seen := make(map[string]bool)
	rest := raw

	for rest != "" {
		open := strings.IndexByte(rest, '<')
		if shut := strings.IndexByte(rest, '>'); shut >= 0 && (open < 0 || shut < open) {
			return nil, &PatternError{Pattern: raw, Reason: "unbalanced '>'"}
		}
		if open < 0 {
			p.segments = append(p.segments, segment{literal: rest})
			break
		}
		if open > 0 {
			p.segments = append(p.segments, segment{literal: rest[:open]})
		}

		rest = rest[open+1:]
		shut := strings.IndexByte(rest, '>')
		if shut < 0 {
			return nil, &PatternError{Pattern: raw, Reason: "unbalanced '<'"}
		}
		decl := rest[:shut]
		rest = rest[shut+1:]

		if strings.ContainsRune(decl, '<') {
			return nil, &PatternError{Pattern: raw, Reason: "nested '<'"}
		}

		convName, name := "str", decl
		if i := strings.IndexByte(decl, ':'); i >= 0 {
			convName, name = decl[:i], decl[i+1:]
		}
		conv, ok := converters[convName]
		if !ok {
			return nil, &PatternError{Pattern: raw, Reason: fmt.Sprintf("unknown converter %q", convName)}
		}
		if !paramName.MatchString(name) {
			return nil, &PatternError{Pattern: raw, Reason: fmt.Sprintf("invalid parameter name %q", name)}
		}
		if seen[name] {
			return nil, &PatternError{Pattern: raw, Reason: fmt.Sprintf("duplicate parameter %q", name)}
		}
		seen[name] = true

		p.segments = append(p.segments, segment{param: name, converter: conv})
	}

	var expr strings.Builder
	expr.WriteString("^")
	for _, s := range p.segments {
		if s.param == "" {
			expr.WriteString(regexp.QuoteMeta(s.literal))
			continue
		}
		fmt.Fprintf(&expr, "(?P<%s>%s)", s.param, s.converter.Regex)
	}
	if full {
		expr.WriteString("$")
	}

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, &PatternError{Pattern: raw, Reason: err.Error()}
	}
	p.regex = re
	return p, nil
}

// match tries p against path. It returns the converted parameters and the
// length of the matched prefix.
func (p *pattern) match(path string) (Params, int, bool) {
	loc := p.regex.FindStringSubmatchIndex(path)
	if loc == nil {
		return nil, 0, false
	}

	var params Params
	for i, name := range p.regex.SubexpNames() {
		if name == "" {
			continue
		}
		raw := path[loc[2*i]:loc[2*i+1]]
		value := any(raw)
		conv := p.converterFor(name)
		if conv.ToValue != nil {
			v, err := conv.ToValue(raw)
			if err != nil {
				// Matched by regex but out of range, e.g. an int overflow
				return nil, 0, false
			}
			value = v
		}
		if params == nil {
			params = make(Params)
		}
		params[name] = value
	}
	return params, loc[1], true
}

func (p *pattern) converterFor(name string) Converter {
	for _, s := range p.segments {
		if s.param == name {
			return s.converter
		}
	}
	return converters["str"]
}

// params lists the placeholder names in order
func (p *pattern) params() []string {
	var names []string
	for _, s := range p.segments {
		if s.param != "" {
			names = append(names, s.param)
		}
	}
	return names
}

// build renders p with values taken from params
func (p *pattern) build(params map[string]any) (string, error) {
	var sb strings.Builder
	for _, s := range p.segments {
		if s.param == "" {
			sb.WriteString(s.literal)
			continue
		}
		v, ok := params[s.param]
		if !ok {
			return "", fmt.Errorf("missing parameter %q", s.param)
		}
		str, err := s.converter.ToURL(v)
		if err != nil {
			return "", fmt.Errorf("parameter %q: %w", s.param, err)
		}
		sb.WriteString(str)
	}
	return sb.String(), nil
}
