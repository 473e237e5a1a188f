package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpPop  Opcode = 0x01 // Pop top of stack
	OpPopN Opcode = 0x02 // Pop n values: OpPopN <n:u8>
	OpDup2 Opcode = 0x04 // Duplicate top two: a b -> a b a b

	// ========================================================================
	// Constants (0x10-0x1F)
	// ========================================================================

	OpConst Opcode = 0x10 // Push constant from pool: OpConst <index:u16>
	OpNil   Opcode = 0x11 // Push nil
	OpTrue  Opcode = 0x12 // Push true
	OpFalse Opcode = 0x13 // Push false

	// ========================================================================
	// Variables (0x20-0x2F)
	// ========================================================================

	OpGetLocal     Opcode = 0x20 // Push local slot: OpGetLocal <slot:u8>
	OpSetLocal     Opcode = 0x21 // Store TOS into slot, leave it on the stack: OpSetLocal <slot:u8>
	OpDefineGlobal Opcode = 0x22 // Pop and bind global: OpDefineGlobal <name:u16>
	OpGetGlobal    Opcode = 0x23 // Push global: OpGetGlobal <name:u16>
	OpSetGlobal    Opcode = 0x24 // Store TOS into existing global: OpSetGlobal <name:u16>

	// ========================================================================
	// Arithmetic (0x50-0x5F)
	// ========================================================================

	OpAdd Opcode = 0x50 // Pop two, push sum or concatenation
	OpSub Opcode = 0x51 // Pop two, push difference (a - b where b is TOS)
	OpMul Opcode = 0x52 // Pop two, push product
	OpDiv Opcode = 0x53 // Pop two, push quotient
	OpMod Opcode = 0x54 // Pop two, push remainder
	OpNeg Opcode = 0x55 // Negate top of stack

	// ========================================================================
	// Comparison (0x60-0x6F)
	// ========================================================================

	OpEq Opcode = 0x60 // Pop two, push true if equal
	OpNe Opcode = 0x61 // Pop two, push true if not equal
	OpLt Opcode = 0x62 // Pop two, push true if a < b
	OpLe Opcode = 0x63 // Pop two, push true if a <= b
	OpGt Opcode = 0x64 // Pop two, push true if a > b
	OpGe Opcode = 0x65 // Pop two, push true if a >= b

	OpNot Opcode = 0x68 // Push true if TOS is falsy

	// ========================================================================
	// Control flow (0x80-0x8F)
	// ========================================================================

	OpJump          Opcode = 0x80 // Unconditional jump: OpJump <offset:i16>
	OpJumpFalse     Opcode = 0x81 // Pop, jump if falsy: OpJumpFalse <offset:i16>
	OpJumpFalseKeep Opcode = 0x82 // Jump if TOS falsy, leaving it: OpJumpFalseKeep <offset:i16>
	OpJumpTrueKeep  Opcode = 0x83 // Jump if TOS truthy, leaving it: OpJumpTrueKeep <offset:i16>

	// ========================================================================
	// Calls (0x90-0x9F)
	// ========================================================================

	OpCall            Opcode = 0x90 // Call callee below argc args: OpCall <argc:u8>
	OpCurrentFunction Opcode = 0x91 // Push the running function

	// ========================================================================
	// Arrays (0xB0-0xBF)
	// ========================================================================

	OpArray    Opcode = 0xB0 // Build array of n elements: OpArray <n:u16>
	OpIndexGet Opcode = 0xB1 // array index -> element
	OpIndexSet Opcode = 0xB2 // array index value -> value

	// ========================================================================
	// Output (0xC0-0xCF)
	// ========================================================================

	OpPrint Opcode = 0xC0 // Print n values joined by spaces: OpPrint <n:u8>

	// ========================================================================
	// Return (0xF0-0xFF)
	// ========================================================================

	OpReturn Opcode = 0xF0 // Return top of stack from the current function
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack manipulation
	OpPop:  {"POP", 1, 0, 0},
	OpPopN: {"POPN", -1, 0, 1},
	OpDup2: {"DUP2", 2, 4, 0},

	// Constants
	OpConst: {"CONST", 0, 1, 2},
	OpNil:   {"NIL", 0, 1, 0},
	OpTrue:  {"TRUE", 0, 1, 0},
	OpFalse: {"FALSE", 0, 1, 0},

	// Variables
	OpGetLocal:     {"GET_LOCAL", 0, 1, 1},
	OpSetLocal:     {"SET_LOCAL", 1, 1, 1},
	OpDefineGlobal: {"DEFINE_GLOBAL", 1, 0, 2},
	OpGetGlobal:    {"GET_GLOBAL", 0, 1, 2},
	OpSetGlobal:    {"SET_GLOBAL", 1, 1, 2},

	// Arithmetic
	OpAdd: {"ADD", 2, 1, 0},
	OpSub: {"SUB", 2, 1, 0},
	OpMul: {"MUL", 2, 1, 0},
	OpDiv: {"DIV", 2, 1, 0},
	OpMod: {"MOD", 2, 1, 0},
	OpNeg: {"NEG", 1, 1, 0},

	// Comparison
	OpEq:  {"EQ", 2, 1, 0},
	OpNe:  {"NE", 2, 1, 0},
	OpLt:  {"LT", 2, 1, 0},
	OpLe:  {"LE", 2, 1, 0},
	OpGt:  {"GT", 2, 1, 0},
	OpGe:  {"GE", 2, 1, 0},
	OpNot: {"NOT", 1, 1, 0},

	// Control flow
	OpJump:          {"JUMP", 0, 0, 2},
	OpJumpFalse:     {"JUMP_FALSE", 1, 0, 2},
	OpJumpFalseKeep: {"JUMP_FALSE_KEEP", 1, 1, 2},
	OpJumpTrueKeep:  {"JUMP_TRUE_KEEP", 1, 1, 2},

	// Calls
	OpCall:            {"CALL", -1, 1, 1}, // Pops callee + argc args
	OpCurrentFunction: {"CURRENT_FN", 0, 1, 0},

	// Arrays
	OpArray:    {"ARRAY", -1, 1, 2},
	OpIndexGet: {"INDEX_GET", 2, 1, 0},
	OpIndexSet: {"INDEX_SET", 3, 1, 0},

	// Output
	OpPrint: {"PRINT", -1, 0, 1},

	// Return
	OpReturn: {"RETURN", 1, 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), StackPop: 0, StackPush: 0, OperandLen: 0}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpJump && op <= OpJumpTrueKeep
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}
