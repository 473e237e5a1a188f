package bytecode

import (
	"fmt"
	"math"
)

// MaxConstants is the size of the constant pool addressable by OpConst.
const MaxConstants = math.MaxUint16 + 1

// MaxLocals is the number of local slots addressable by a u8 operand.
const MaxLocals = math.MaxUint8 + 1

// Chunk represents compiled bytecode for one function.
// A chunk is mutable while the compiler emits into it and is treated as
// read-only once compilation finishes.
type Chunk struct {
	Name string // Function name, "<script>" for top level

	// Code section
	Code  []byte // Bytecode instructions
	Lines []int  // Source line of each byte in Code

	// Constant pool referenced by OpConst and the global opcodes
	Constants []Value

	// Local variables
	ParamCount int // Number of parameters, occupying slots 0..ParamCount-1
	LocalCount int // Maximum number of live local slots

	constIndex map[constKey]int
}

type constKey struct {
	kind Kind
	num  float64
	str  string
}

// Function is a compiled user-defined function.
type Function struct {
	Name   string
	Params []string
	Chunk  *Chunk
}

func (f *Function) FuncName() string { return f.Name }
func (f *Function) Arity() int       { return len(f.Params) }

// NewChunk creates a new empty chunk.
func NewChunk(name string) *Chunk {
	return &Chunk{
		Name:       name,
		Code:       make([]byte, 0, 64),
		Lines:      make([]int, 0, 64),
		Constants:  make([]Value, 0, 8),
		constIndex: make(map[constKey]int),
	}
}

// AddConstant adds a value to the pool and returns its index.
// Scalar constants are deduplicated; functions always get a new entry.
func (c *Chunk) AddConstant(v Value) int {
	switch v.kind {
	case KindNil, KindBool, KindNumber, KindString:
		key := constKey{v.kind, v.num, v.str}
		if idx, ok := c.constIndex[key]; ok {
			return idx
		}
		idx := len(c.Constants)
		c.Constants = append(c.Constants, v)
		if c.constIndex == nil {
			c.constIndex = make(map[constKey]int)
		}
		c.constIndex[key] = idx
		return idx
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Emit appends a single-byte opcode to the code section.
func (c *Chunk) Emit(op Opcode, line int) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Lines = append(c.Lines, line)
	return offset
}

// EmitWithOperand appends an opcode with operand bytes.
func (c *Chunk) EmitWithOperand(op Opcode, line int, operands ...byte) int {
	offset := c.Emit(op, line)
	for _, b := range operands {
		c.Code = append(c.Code, b)
		c.Lines = append(c.Lines, line)
	}
	return offset
}

// EmitU16 appends an opcode with a big-endian u16 operand.
func (c *Chunk) EmitU16(op Opcode, line int, operand int) int {
	return c.EmitWithOperand(op, line, byte(operand>>8), byte(operand))
}

// EmitJump emits a jump instruction with a placeholder offset.
// Returns the offset of the placeholder for later patching.
func (c *Chunk) EmitJump(op Opcode, line int) int {
	offset := c.EmitWithOperand(op, line, 0xFF, 0xFF)
	return offset + 1
}

// PatchJump patches a jump instruction's offset to jump to the current position.
func (c *Chunk) PatchJump(placeholderOffset int) error {
	return c.PatchJumpTo(placeholderOffset, len(c.Code))
}

// PatchJumpTo patches a jump to go to a specific offset.
func (c *Chunk) PatchJumpTo(placeholderOffset int, target int) error {
	jumpFrom := placeholderOffset + 2
	delta := target - jumpFrom
	if delta < math.MinInt16 || delta > math.MaxInt16 {
		return fmt.Errorf("jump of %d bytes is too far", delta)
	}

	c.Code[placeholderOffset] = byte(delta >> 8)
	c.Code[placeholderOffset+1] = byte(delta)
	return nil
}

// EmitLoop emits a backward jump to the given loop start.
func (c *Chunk) EmitLoop(loopStart int, line int) error {
	placeholder := c.EmitJump(OpJump, line)
	return c.PatchJumpTo(placeholder, loopStart)
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// LineAt returns the source line of the instruction at offset, or 0.
func (c *Chunk) LineAt(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

func (c *Chunk) readU16(offset int) int {
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}

func (c *Chunk) readI16(offset int) int {
	return int(int16(uint16(c.Code[offset])<<8 | uint16(c.Code[offset+1])))
}
