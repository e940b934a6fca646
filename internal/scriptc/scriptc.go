// Package scriptc is a deliberately small script front end used by the
// command line tool and the integration tests. It understands enough of
// the language to produce realistic units: brace and quote grouping,
// variable words, command locations, and the procedure definition
// notifications the rewriting passes consume. It performs no command
// substitution and compiles every command to a generic invocation.
package scriptc

import (
	"strings"

	"github.com/tcltk-depot/tclcompiler/bytecode"
	"github.com/tcltk-depot/tclcompiler/compiler"
	"github.com/tcltk-depot/tclcompiler/op"
)

// Frontend compiles script text into units. It implements compiler.Host.
type Frontend struct {
	instrument bool
}

// Option configures a Frontend.
type Option func(*Frontend)

// WithInstrumentation makes the front end emit a command prefix
// instruction ahead of every command, the way an interpreter's
// execution-count instrumentation would.
func WithInstrumentation() Option {
	return func(f *Frontend) { f.instrument = true }
}

// New returns a Frontend with the given options applied.
func New(opts ...Option) *Frontend {
	f := &Frontend{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Compile builds a unit from source. Literal words are interned through
// the context's deduplication table; variable words compile to a name
// push plus a load.
func (f *Frontend) Compile(ctx *compiler.Context, source string, listener compiler.Listener) (*bytecode.Unit, error) {
	u := bytecode.New(ctx.NewUnitID())
	u.Source = source

	maxDepth := 1
	for _, cmd := range splitCommands(source) {
		words := scanWords(cmd.text)
		if len(words) == 0 || strings.HasPrefix(words[0].text, "#") {
			continue
		}
		if len(words) > maxDepth {
			maxDepth = len(words)
		}

		cmdOffset := u.CodeLen()
		if words[0].text == "proc" && listener != nil {
			listener.ProcDefined(cmdOffset, cmd.line)
		}

		var startCmd int
		if f.instrument {
			startCmd = u.Emit(op.StartCmd, 0, 1)
		}
		for _, word := range words {
			f.compileWord(ctx, u, word)
		}
		if len(words) < 255 {
			u.Emit(op.InvokeStk1, len(words))
		} else {
			u.Emit(op.InvokeStk4, len(words))
		}
		u.Emit(op.Pop)

		if f.instrument {
			bytecode.PutInt4At(u.Code, startCmd+1, u.CodeLen()-startCmd)
		}
		u.Commands = append(u.Commands, bytecode.CmdLocation{
			CodeOffset:   cmdOffset,
			NumCodeBytes: u.CodeLen() - cmdOffset,
			SrcOffset:    cmd.offset,
			NumSrcChars:  len(cmd.text),
			SrcLine:      cmd.line,
		})
	}
	u.Emit(op.Done)
	u.MaxStackDepth = maxDepth
	return u, nil
}

func (f *Frontend) compileWord(ctx *compiler.Context, u *bytecode.Unit, w word) {
	if !w.braced && strings.HasPrefix(w.text, "$") && len(w.text) > 1 {
		u.EmitPush(ctx.SharedIndex(u, w.text[1:]))
		u.Emit(op.LoadStk)
		return
	}
	u.EmitPush(ctx.SharedIndex(u, w.text))
}

type command struct {
	text   string
	offset int
	line   int
}

// splitCommands breaks a script into commands at newlines and
// semicolons that sit outside braces, quotes, and brackets.
func splitCommands(source string) []command {
	var commands []command
	line := 1
	start := 0
	startLine := 1
	depth := 0
	inQuote := false

	flush := func(end int) {
		text := source[start:end]
		if strings.TrimSpace(text) != "" {
			commands = append(commands, command{text: text, offset: start, line: startLine})
		}
	}

	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case c == '\\' && i+1 < len(source):
			i++
			if source[i] == '\n' {
				line++
			}
		case inQuote:
			if c == '"' {
				inQuote = false
			} else if c == '\n' {
				line++
			}
		case c == '"':
			inQuote = true
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			if depth > 0 {
				depth--
			}
		case (c == '\n' || c == ';') && depth == 0:
			flush(i)
			if c == '\n' {
				line++
			}
			start = i + 1
			startLine = line
		case c == '\n':
			line++
		}
	}
	flush(len(source))
	return commands
}

// word is one parsed command word. Braced words are grouped verbatim
// and never treated as variable references.
type word struct {
	text   string
	braced bool
}

// scanWords breaks a command into words. Braced words keep their
// content verbatim; quoted and bare words process backslash escapes.
func scanWords(text string) []word {
	var words []word
	i := 0
	for i < len(text) {
		for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\n') {
			i++
		}
		if i >= len(text) {
			break
		}
		w := word{}
		switch text[i] {
		case '{':
			w.text, i = scanBraced(text, i)
			w.braced = true
		case '"':
			w.text, i = scanQuoted(text, i)
		default:
			w.text, i = scanBare(text, i)
		}
		words = append(words, w)
	}
	return words
}

func scanBraced(text string, start int) (string, int) {
	depth := 1
	i := start + 1
	for i < len(text) {
		switch text[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start+1 : i], i + 1
			}
		}
		i++
	}
	return text[start+1:], i
}

func scanQuoted(text string, start int) (string, int) {
	var b strings.Builder
	i := start + 1
	for i < len(text) {
		switch text[i] {
		case '\\':
			if i+1 < len(text) {
				b.WriteByte(text[i+1])
				i += 2
				continue
			}
			i++
		case '"':
			return b.String(), i + 1
		default:
			b.WriteByte(text[i])
			i++
		}
	}
	return b.String(), i
}

func scanBare(text string, start int) (string, int) {
	var b strings.Builder
	i := start
	for i < len(text) && text[i] != ' ' && text[i] != '\t' && text[i] != '\n' {
		if text[i] == '\\' && i+1 < len(text) {
			b.WriteByte(text[i+1])
			i += 2
			continue
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String(), i
}
