// Package dis decodes instruction streams using the per-opcode operand
// descriptors in the op package. The compiler's scanning passes use
// Decode; the CLI uses Disassemble and Print for human inspection.
package dis

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/tcltk-depot/tclcompiler/bytecode"
	"github.com/tcltk-depot/tclcompiler/op"
)

// Instruction is one decoded instruction.
type Instruction struct {
	Offset   int
	Opcode   op.Code
	Name     string
	Operands []int
	Size     int
}

// Decode decodes the instruction starting at the given offset. It fails
// on undefined opcodes and on instructions that run past the end of the
// code buffer.
func Decode(code []byte, offset int) (Instruction, error) {
	if offset < 0 || offset >= len(code) {
		return Instruction{}, fmt.Errorf("offset %d out of range (code is %d bytes)", offset, len(code))
	}
	opcode := op.Code(code[offset])
	info := op.GetInfo(opcode)
	if info.Size == 0 {
		return Instruction{}, fmt.Errorf("undefined opcode %d at offset %d", opcode, offset)
	}
	if offset+info.Size > len(code) {
		return Instruction{}, fmt.Errorf("truncated %s instruction at offset %d", info.Name, offset)
	}
	instr := Instruction{
		Offset: offset,
		Opcode: opcode,
		Name:   info.Name,
		Size:   info.Size,
	}
	pos := offset + 1
	for _, t := range info.Operands {
		var v int
		switch t {
		case op.OperandUint1:
			v = bytecode.GetUint1At(code, pos)
		case op.OperandInt1:
			v = bytecode.GetInt1At(code, pos)
		case op.OperandUint4, op.OperandAux4:
			v = bytecode.GetUint4At(code, pos)
		case op.OperandInt4:
			v = bytecode.GetInt4At(code, pos)
		}
		instr.Operands = append(instr.Operands, v)
		pos += t.Width()
	}
	return instr, nil
}

// Disassemble decodes the whole instruction stream of a unit.
func Disassemble(u *bytecode.Unit) ([]Instruction, error) {
	var instructions []Instruction
	for offset := 0; offset < len(u.Code); {
		instr, err := Decode(u.Code, offset)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, instr)
		offset += instr.Size
	}
	return instructions, nil
}

var (
	opcodeColor  = color.New(color.Bold)
	literalColor = color.New(color.FgGreen)
	targetColor  = color.New(color.FgCyan)
)

// Print writes a listing of the unit's instructions to the given writer,
// annotating push operands with their literal values and jump operands
// with their resolved destinations.
func Print(u *bytecode.Unit, w io.Writer) error {
	instructions, err := Disassemble(u)
	if err != nil {
		return err
	}
	for _, instr := range instructions {
		fmt.Fprintf(w, "%6d  %s", instr.Offset, opcodeColor.Sprintf("%-14s", instr.Name))
		for _, operand := range instr.Operands {
			fmt.Fprintf(w, " %d", operand)
		}
		switch instr.Opcode {
		case op.Push1, op.Push4:
			idx := instr.Operands[0]
			if idx < len(u.Literals) {
				fmt.Fprintf(w, "\t# %s", literalColor.Sprint(formatLiteral(u.Literals[idx])))
			}
		case op.Jump1, op.Jump4, op.JumpTrue1, op.JumpTrue4, op.JumpFalse1, op.JumpFalse4:
			fmt.Fprintf(w, "\t# %s", targetColor.Sprintf("pc %d", instr.Offset+instr.Operands[0]))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func formatLiteral(v any) string {
	switch lit := v.(type) {
	case string:
		if len(lit) > 40 {
			lit = lit[:37] + "..."
		}
		return fmt.Sprintf("%q", lit)
	case *bytecode.Unit:
		return "<bytecode>"
	case *bytecode.ProcBody:
		return "<procbody>"
	default:
		return fmt.Sprintf("%v", v)
	}
}
