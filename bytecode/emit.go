package bytecode

import (
	"fmt"

	"github.com/tcltk-depot/tclcompiler/op"
)

// Operand byte order is big endian, matching the on-disk format.

// GetUint1At reads a one-byte unsigned operand at the given offset.
func GetUint1At(code []byte, offset int) int {
	return int(code[offset])
}

// GetUint4At reads a four-byte unsigned operand at the given offset.
func GetUint4At(code []byte, offset int) int {
	return int(code[offset])<<24 | int(code[offset+1])<<16 |
		int(code[offset+2])<<8 | int(code[offset+3])
}

// GetInt1At reads a one-byte signed operand at the given offset.
func GetInt1At(code []byte, offset int) int {
	return int(int8(code[offset]))
}

// GetInt4At reads a four-byte signed operand at the given offset.
func GetInt4At(code []byte, offset int) int {
	return int(int32(uint32(code[offset])<<24 | uint32(code[offset+1])<<16 |
		uint32(code[offset+2])<<8 | uint32(code[offset+3])))
}

// PutUint4At writes a four-byte operand at the given offset.
func PutUint4At(code []byte, offset, v int) {
	code[offset] = byte(v >> 24)
	code[offset+1] = byte(v >> 16)
	code[offset+2] = byte(v >> 8)
	code[offset+3] = byte(v)
}

// PutInt4At writes a four-byte signed operand at the given offset.
func PutInt4At(code []byte, offset, v int) {
	PutUint4At(code, offset, v)
}

// Emit appends an instruction to the code buffer and returns the offset
// at which it was written. The operand count and widths must match the
// opcode's descriptor; a mismatch is a programming error.
func (u *Unit) Emit(code op.Code, operands ...int) int {
	info := op.GetInfo(code)
	if info.Size == 0 {
		panic(fmt.Sprintf("bytecode: emit of undefined opcode %d", code))
	}
	if len(operands) != len(info.Operands) {
		panic(fmt.Sprintf("bytecode: %s takes %d operands, got %d",
			info.Name, len(info.Operands), len(operands)))
	}
	offset := len(u.Code)
	u.Code = append(u.Code, byte(code))
	for i, operand := range operands {
		switch info.Operands[i].Width() {
		case 1:
			u.Code = append(u.Code, byte(operand))
		case 4:
			u.Code = append(u.Code,
				byte(operand>>24), byte(operand>>16),
				byte(operand>>8), byte(operand))
		}
	}
	return offset
}

// EmitPush appends a push of the given literal index, choosing the narrow
// form when the index fits in one byte.
func (u *Unit) EmitPush(index int) int {
	if index < 255 {
		return u.Emit(op.Push1, index)
	}
	return u.Emit(op.Push4, index)
}
