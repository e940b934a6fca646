package tbc

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/tcltk-depot/tclcompiler/bytecode"
)

// Writer serializes units to the .tbc container.
type Writer struct {
	w *bufio.Writer

	// TclVersion is the language version recorded in the signature line.
	TclVersion string
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithTclVersion overrides the language version in the signature line.
func WithTclVersion(v string) WriterOption {
	return func(w *Writer) { w.TclVersion = v }
}

// NewWriter returns a Writer targeting w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	tw := &Writer{w: bufio.NewWriter(w), TclVersion: "8.6"}
	for _, opt := range opts {
		opt(tw)
	}
	return tw
}

// Serialize writes one unit as a complete guarded script. An optional
// caller preamble is emitted ahead of the loader guard; pass "" for
// none.
func Serialize(u *bytecode.Unit, w io.Writer, preamble string, opts ...WriterOption) error {
	return NewWriter(w, opts...).WriteScript(u, preamble)
}

// WriteScript emits the caller preamble, the loader guard, the
// signature, the unit dump, and the closing postamble, then flushes.
func (w *Writer) WriteScript(u *bytecode.Unit, preamble string) error {
	if preamble != "" {
		w.writeString(preamble, '\n')
	}
	w.writeString(Preamble(), '\n')
	w.writeString(Signature(w.TclVersion), '\n')
	if err := w.writeUnit(u); err != nil {
		return fmt.Errorf("error writing bytecode stream: %w", err)
	}
	w.writeString(Postamble(), '\n')
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("error flushing bytecode stream: %w", err)
	}
	return nil
}

// writeUnit dumps one unit: the size header, the instruction and
// location-map byte runs, then the support arrays. Nested units recurse
// through the literal pool.
func (w *Writer) writeUnit(u *bytecode.Unit) error {
	codeDelta, codeLength, srcDelta, srcLength := locationArrays(u)
	numCmdLocBytes := len(codeDelta) + len(codeLength) + len(srcDelta) + len(srcLength)

	w.writeInt(len(u.Commands), ' ')
	w.writeInt(0, ' ') // source text is not shipped
	w.writeInt(len(u.Code), ' ')
	w.writeInt(len(u.Literals), ' ')
	w.writeInt(len(u.ExceptRanges), ' ')
	w.writeInt(len(u.AuxData), ' ')
	w.writeInt(numCmdLocBytes, ' ')
	w.writeInt(u.MaxExceptDepth, ' ')
	w.writeInt(u.MaxStackDepth, ' ')
	w.writeInt(len(codeDelta), ' ')
	w.writeInt(len(codeLength), ' ')
	w.writeInt(-1, ' ') // source delta array is not shipped
	w.writeInt(-1, '\n')

	if err := w.writeByteRun(u.Code); err != nil {
		return err
	}
	if err := w.writeByteRun(codeDelta); err != nil {
		return err
	}
	if err := w.writeByteRun(codeLength); err != nil {
		return err
	}

	w.writeInt(len(u.Literals), '\n')
	for _, lit := range u.Literals {
		if err := w.writeLiteral(lit); err != nil {
			return err
		}
	}
	if err := w.writeExceptRanges(u); err != nil {
		return err
	}
	return w.writeAuxData(u)
}

func (w *Writer) writeLiteral(v any) error {
	switch lit := v.(type) {
	case int64:
		w.writeChar(IntTag, '\n')
		w.writeString(strconv.FormatInt(lit, 10), '\n')
	case float64:
		w.writeChar(DoubleTag, '\n')
		w.writeString(formatDouble(lit), '\n')
	case string:
		w.writeChar(XStringTag, '\n')
		return w.writeByteRun([]byte(lit))
	case *bytecode.Unit:
		w.writeChar(ByteCodeTag, '\n')
		return w.writeUnit(lit)
	case *bytecode.ProcBody:
		w.writeChar(ProcBodyTag, '\n')
		return w.writeProcBody(lit)
	default:
		return fmt.Errorf("unknown literal type %T", v)
	}
	return nil
}

// writeProcBody emits the body's unit followed by the parameter table.
func (w *Writer) writeProcBody(p *bytecode.ProcBody) error {
	if err := w.writeUnit(p.Unit); err != nil {
		return err
	}
	w.writeInt(len(p.Params), ' ')
	w.writeInt(p.NumCompiledLocals(), '\n')
	for _, param := range p.Params {
		if err := w.writeParam(param); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeParam(p bytecode.Param) error {
	if err := w.writeByteRun([]byte(p.Name)); err != nil {
		return err
	}
	hasDef := 0
	if p.Default != nil {
		hasDef = 1
	}
	w.writeInt(p.FrameIndex, ' ')
	w.writeInt(hasDef, ' ')
	w.writeInt(int(p.Flags&(bytecode.VarArgument|bytecode.VarTemporary)), '\n')
	if p.Default != nil {
		return w.writeLiteral(p.Default)
	}
	return nil
}

func (w *Writer) writeExceptRanges(u *bytecode.Unit) error {
	w.writeInt(len(u.ExceptRanges), '\n')
	for _, er := range u.ExceptRanges {
		tag := byte(LoopRangeTag)
		if er.Kind == bytecode.CatchRange {
			tag = CatchRangeTag
		}
		w.writeChar(tag, ' ')
		w.writeInt(er.NestingLevel, ' ')
		w.writeInt(er.CodeOffset, ' ')
		w.writeInt(er.NumCodeBytes, ' ')
		w.writeInt(er.BreakOffset, ' ')
		w.writeInt(er.ContinueOffset, ' ')
		w.writeInt(er.CatchOffset, '\n')
	}
	return nil
}

func (w *Writer) writeAuxData(u *bytecode.Unit) error {
	w.writeInt(len(u.AuxData), '\n')
	for _, aux := range u.AuxData {
		switch info := aux.(type) {
		case *bytecode.JumptableInfo:
			w.writeChar(JumptableTag, '\n')
			if err := w.writeJumptable(info); err != nil {
				return err
			}
		case *bytecode.DictUpdateInfo:
			w.writeChar(DictUpdateTag, '\n')
			w.writeInt(len(info.VarIndices), '\n')
			for _, idx := range info.VarIndices {
				w.writeInt(idx, '\n')
			}
		case *bytecode.ForeachInfo:
			w.writeChar(ForeachTag, '\n')
			w.writeForeach(info)
		default:
			return fmt.Errorf("unknown auxiliary data type %T", aux)
		}
	}
	return nil
}

// writeJumptable emits entries in sorted key order so output is stable
// across runs.
func (w *Writer) writeJumptable(info *bytecode.JumptableInfo) error {
	keys := make([]string, 0, len(info.Targets))
	for k := range info.Targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w.writeInt(len(keys), '\n')
	for _, k := range keys {
		w.writeInt(info.Targets[k], '\n')
		if err := w.writeByteRun([]byte(k)); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeForeach(info *bytecode.ForeachInfo) {
	w.writeInt(len(info.VarLists), ' ')
	w.writeInt(info.LoopCtTemp, '\n')
	for _, vars := range info.VarLists {
		w.writeInt(len(vars), '\n')
		for j, v := range vars {
			sep := byte(' ')
			if j == len(vars)-1 {
				sep = '\n'
			}
			w.writeInt(v, sep)
		}
	}
}

func (w *Writer) writeByteRun(data []byte) error {
	w.writeInt(len(data), '\n')
	return NewEncoder(w.w).Encode(data)
}

func (w *Writer) writeInt(v int, sep byte) {
	w.w.WriteString(strconv.Itoa(v))
	w.w.WriteByte(sep)
}

func (w *Writer) writeString(s string, sep byte) {
	w.w.WriteString(s)
	w.w.WriteByte(sep)
}

func (w *Writer) writeChar(c byte, sep byte) {
	w.w.WriteByte(c)
	w.w.WriteByte(sep)
}

// formatDouble renders a float the way script text expects: shortest
// round-trip form, with a decimal point forced onto integral values.
func formatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && !strings.Contains(s, "NaN") {
		s += ".0"
	}
	return s
}

// locationArrays builds the delta-encoded command location arrays. Each
// value is one byte when it fits in 0..127, otherwise an 0xff marker
// followed by four big-endian bytes. The source arrays are computed for
// the header's total but not emitted.
func locationArrays(u *bytecode.Unit) (codeDelta, codeLength, srcDelta, srcLength []byte) {
	prevCode, prevSrc := 0, 0
	for _, cmd := range u.Commands {
		codeDelta = appendLocEntry(codeDelta, cmd.CodeOffset-prevCode)
		codeLength = appendLocEntry(codeLength, cmd.NumCodeBytes)
		srcDelta = appendLocEntry(srcDelta, cmd.SrcOffset-prevSrc)
		srcLength = appendLocEntry(srcLength, cmd.NumSrcChars)
		prevCode = cmd.CodeOffset
		prevSrc = cmd.SrcOffset
	}
	return
}

func appendLocEntry(dst []byte, v int) []byte {
	if v >= 0 && v <= 127 {
		return append(dst, byte(v))
	}
	return append(dst, 0xff, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
