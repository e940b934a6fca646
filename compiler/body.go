package compiler

import (
	"strings"

	"github.com/tcltk-depot/tclcompiler/bytecode"
)

// parseParams turns a procedure's argument-list word into the parameter
// table of its compiled body. Each list element is itself a list of one
// or two fields: the parameter name and an optional default value.
func parseParams(procName, args string) ([]bytecode.Param, error) {
	elements, err := splitList(args)
	if err != nil {
		return nil, NewErrorf(ErrParam, "bad argument list: %v", err)
	}

	params := make([]bytecode.Param, 0, len(elements))
	for i, element := range elements {
		fields, err := splitList(element)
		if err != nil {
			return nil, NewErrorf(ErrParam, "bad argument specifier %q: %v", element, err)
		}
		switch {
		case len(fields) > 2:
			return nil, NewErrorf(ErrParam,
				"too many fields in argument specifier %q", element)
		case len(fields) == 0 || fields[0] == "":
			return nil, NewErrorf(ErrParam,
				"procedure %q has argument with no name", procName)
		}
		name := fields[0]
		if open := strings.IndexByte(name, '('); open >= 0 && strings.HasSuffix(name, ")") {
			return nil, NewErrorf(ErrParam,
				"procedure %q has formal parameter %q that is an array element",
				procName, name)
		}
		p := bytecode.Param{
			Name:       name,
			FrameIndex: i,
			Flags:      bytecode.VarArgument,
		}
		if len(fields) == 2 {
			p.Default = fields[1]
		}
		params = append(params, p)
	}
	return params, nil
}

// compileProcBody compiles one procedure body into a ProcBody literal:
// the parameter table from the argument-list word and a nested unit from
// the body word. The nested compilation runs isolated so the body's pool
// never interns against the enclosing unit, and its own procedure
// definitions go through the same rewriting.
func (c *Compiler) compileProcBody(ctx *Context, name, args, body string, line int) (*bytecode.ProcBody, error) {
	params, err := parseParams(name, args)
	if err != nil {
		if ce, ok := err.(*Error); ok {
			return nil, ce.InProc(name, line)
		}
		return nil, err
	}

	var unit *bytecode.Unit
	err = ctx.Isolated(func() error {
		recorder := &siteRecorder{}
		u, err := c.host.Compile(ctx, body, recorder)
		if err != nil {
			return err
		}
		if err := c.Rewrite(ctx, u, recorder.sites); err != nil {
			return err
		}
		unit = u
		return nil
	})
	if err != nil {
		return nil, NewErrorf(ErrBody, "compilation of procedure %q failed", name).
			InProc(name, line).WithCause(err)
	}

	ctx.Stats.NumCompiledBodies++
	return &bytecode.ProcBody{Unit: unit, Params: params}, nil
}

// splitList splits a string into list elements: whitespace separated,
// with braces and double quotes grouping and backslash escaping the next
// character in unbraced elements.
func splitList(s string) ([]string, error) {
	var elements []string
	i := 0
	for i < len(s) {
		for i < len(s) && isListSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}
		var element string
		var err error
		switch s[i] {
		case '{':
			element, i, err = parseBraced(s, i)
		case '"':
			element, i, err = parseQuoted(s, i)
		default:
			element, i = parseBare(s, i)
		}
		if err != nil {
			return nil, err
		}
		elements = append(elements, element)
	}
	return elements, nil
}

func isListSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func parseBraced(s string, start int) (string, int, error) {
	depth := 1
	i := start + 1
	for i < len(s) {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				element := s[start+1 : i]
				i++
				if i < len(s) && !isListSpace(s[i]) {
					return "", 0, NewErrorf(ErrParam,
						"list element in braces followed by %q instead of space", s[i:i+1])
				}
				return element, i, nil
			}
		}
		i++
	}
	return "", 0, NewError(ErrParam, "unmatched open brace in list")
}

func parseQuoted(s string, start int) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(s) {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			i++
		case '"':
			i++
			if i < len(s) && !isListSpace(s[i]) {
				return "", 0, NewErrorf(ErrParam,
					"list element in quotes followed by %q instead of space", s[i:i+1])
			}
			return b.String(), i, nil
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return "", 0, NewError(ErrParam, "unmatched open quote in list")
}

func parseBare(s string, start int) (string, int) {
	var b strings.Builder
	i := start
	for i < len(s) && !isListSpace(s[i]) {
		if s[i] == '\\' && i+1 < len(s) {
			b.WriteByte(s[i+1])
			i += 2
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String(), i
}
