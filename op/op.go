// Package op defines the opcodes of the stack machine whose compiled
// instruction streams this module post-processes and serializes.
package op

// Code is a one-byte opcode. Instructions are variable length: the opcode
// byte followed by zero or more fixed-width operands.
type Code byte

const (
	Done Code = 0

	// Literal pushes. The wide form of every narrow instruction is the
	// next opcode value; Widen relies on this pairing.
	Push1 Code = 1
	Push4 Code = 2

	Pop     Code = 3
	Dup     Code = 4
	Concat1 Code = 5

	InvokeStk1 Code = 6
	InvokeStk4 Code = 7

	EvalStk Code = 8
	LoadStk Code = 9

	LoadScalar1  Code = 10
	LoadScalar4  Code = 11
	StoreScalar1 Code = 12
	StoreScalar4 Code = 13

	// Jumps. IsJump assumes these are contiguous.
	Jump1      Code = 14
	Jump4      Code = 15
	JumpTrue1  Code = 16
	JumpTrue4  Code = 17
	JumpFalse1 Code = 18
	JumpFalse4 Code = 19

	BeginCatch4    Code = 20
	EndCatch       Code = 21
	PushResult     Code = 22
	PushReturnCode Code = 23

	Break    Code = 24
	Continue Code = 25

	ForeachStart4 Code = 26
	ForeachStep4  Code = 27

	// StartCmd is the instrumentation prefix the host compiler may emit
	// ahead of each command: opcode + next-command offset + command count.
	StartCmd Code = 28
)

// OperandType describes the encoding of one instruction operand.
type OperandType int

const (
	OperandNone OperandType = iota
	OperandUint1
	OperandUint4
	OperandInt1
	OperandInt4
	OperandAux4
)

// Width returns the encoded size of the operand in bytes.
func (t OperandType) Width() int {
	switch t {
	case OperandUint1, OperandInt1:
		return 1
	case OperandUint4, OperandInt4, OperandAux4:
		return 4
	default:
		return 0
	}
}

// Info describes an opcode: its name, total encoded size, and operand types.
type Info struct {
	Code     Code
	Name     string
	Size     int
	Operands []OperandType
}

var infos = make([]Info, 256)

func init() {
	type opInfo struct {
		op       Code
		name     string
		operands []OperandType
	}
	ops := []opInfo{
		{Done, "done", nil},
		{Push1, "push1", []OperandType{OperandUint1}},
		{Push4, "push4", []OperandType{OperandUint4}},
		{Pop, "pop", nil},
		{Dup, "dup", nil},
		{Concat1, "concat1", []OperandType{OperandUint1}},
		{InvokeStk1, "invokeStk1", []OperandType{OperandUint1}},
		{InvokeStk4, "invokeStk4", []OperandType{OperandUint4}},
		{EvalStk, "evalStk", nil},
		{LoadStk, "loadStk", nil},
		{LoadScalar1, "loadScalar1", []OperandType{OperandUint1}},
		{LoadScalar4, "loadScalar4", []OperandType{OperandUint4}},
		{StoreScalar1, "storeScalar1", []OperandType{OperandUint1}},
		{StoreScalar4, "storeScalar4", []OperandType{OperandUint4}},
		{Jump1, "jump1", []OperandType{OperandInt1}},
		{Jump4, "jump4", []OperandType{OperandInt4}},
		{JumpTrue1, "jumpTrue1", []OperandType{OperandInt1}},
		{JumpTrue4, "jumpTrue4", []OperandType{OperandInt4}},
		{JumpFalse1, "jumpFalse1", []OperandType{OperandInt1}},
		{JumpFalse4, "jumpFalse4", []OperandType{OperandInt4}},
		{BeginCatch4, "beginCatch4", []OperandType{OperandUint4}},
		{EndCatch, "endCatch", nil},
		{PushResult, "pushResult", nil},
		{PushReturnCode, "pushReturnCode", nil},
		{Break, "break", nil},
		{Continue, "continue", nil},
		{ForeachStart4, "foreachStart4", []OperandType{OperandAux4}},
		{ForeachStep4, "foreachStep4", []OperandType{OperandAux4}},
		{StartCmd, "startCommand", []OperandType{OperandInt4, OperandUint4}},
	}
	for _, o := range ops {
		size := 1
		for _, t := range o.operands {
			size += t.Width()
		}
		infos[o.op] = Info{
			Code:     o.op,
			Name:     o.name,
			Size:     size,
			Operands: o.operands,
		}
	}
}

// GetInfo returns information about the given opcode. The Name field is
// empty for undefined opcodes.
func GetInfo(op Code) Info {
	return infos[op]
}

// Size returns the total encoded length of an instruction with this opcode,
// or 0 if the opcode is undefined.
func Size(op Code) int {
	return infos[op].Size
}

// IsJump reports whether op is a relative jump instruction, in either
// narrow or wide form.
func IsJump(op Code) bool {
	return op >= Jump1 && op <= JumpFalse4
}

// IsNarrow reports whether op is the narrow (1-byte operand) form of an
// instruction that also has a wide form.
func IsNarrow(op Code) bool {
	switch op {
	case Push1, Jump1, JumpTrue1, JumpFalse1:
		return true
	}
	return false
}

// Widen returns the wide form of a narrow push or jump opcode. Narrow and
// wide forms are paired, with the wide opcode one above the narrow one.
func Widen(op Code) Code {
	return op + 1
}
