package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk.
func (c *Chunk) Disassemble() string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("; === %s ===\n", c.Name))
	if c.ParamCount > 0 {
		sb.WriteString(fmt.Sprintf("; Parameters: %d\n", c.ParamCount))
	}
	if c.LocalCount > 0 {
		sb.WriteString(fmt.Sprintf("; Locals: %d slots\n", c.LocalCount))
	}

	// Constants
	if len(c.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, v := range c.Constants {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, constDisplay(v)))
		}
	}

	// Code section
	sb.WriteString("; Code:\n")
	offset := 0
	prevLine := -1
	for offset < len(c.Code) {
		text, instrLen := c.disassembleInstruction(offset)
		if line := c.LineAt(offset); line != prevLine {
			sb.WriteString(fmt.Sprintf("%04X  %-30s ; line %d\n", offset, text, line))
			prevLine = line
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, text))
		}
		offset += instrLen
	}

	return sb.String()
}

// DisassembleAll lists the chunk followed by every function chunk reachable
// through its constant pool, depth first.
func DisassembleAll(fn *Function) string {
	var sb strings.Builder
	var walk func(f *Function)
	walk = func(f *Function) {
		sb.WriteString(f.Chunk.Disassemble())
		for _, v := range f.Chunk.Constants {
			if inner, ok := v.AsCallable().(*Function); ok {
				sb.WriteString("\n")
				walk(inner)
			}
		}
	}
	walk(fn)
	return sb.String()
}

// DisassembleInstruction disassembles the single instruction at offset.
func (c *Chunk) DisassembleInstruction(offset int) string {
	text, _ := c.disassembleInstruction(offset)
	return text
}

// disassembleInstruction disassembles a single instruction at the given offset.
// Returns the formatted string and the instruction length.
func (c *Chunk) disassembleInstruction(offset int) (string, int) {
	if offset >= len(c.Code) {
		return "<end of code>", 0
	}

	op := Opcode(c.Code[offset])
	info := GetOpcodeInfo(op)
	if offset+info.OperandLen >= len(c.Code) {
		return fmt.Sprintf("%s <truncated>", info.Name), len(c.Code) - offset
	}

	switch op {
	case OpConst:
		idx := c.readU16(offset + 1)
		return fmt.Sprintf("%s %d ; %s", info.Name, idx, c.constantAt(idx)), 3

	case OpDefineGlobal, OpGetGlobal, OpSetGlobal:
		idx := c.readU16(offset + 1)
		return fmt.Sprintf("%s %d ; %s", info.Name, idx, c.constantAt(idx)), 3

	case OpGetLocal, OpSetLocal:
		return fmt.Sprintf("%s %d", info.Name, c.Code[offset+1]), 2

	case OpPopN, OpCall, OpPrint:
		return fmt.Sprintf("%s %d", info.Name, c.Code[offset+1]), 2

	case OpArray:
		return fmt.Sprintf("%s %d", info.Name, c.readU16(offset+1)), 3

	case OpJump, OpJumpFalse, OpJumpFalseKeep, OpJumpTrueKeep:
		delta := c.readI16(offset + 1)
		target := offset + 3 + delta
		return fmt.Sprintf("%s %+d ; -> %04X", info.Name, delta, target), 3
	}

	return info.Name, 1 + info.OperandLen
}

func (c *Chunk) constantAt(idx int) string {
	if idx < len(c.Constants) {
		return constDisplay(c.Constants[idx])
	}
	return "<bad constant>"
}

func constDisplay(v Value) string {
	s := v.Repr()
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return s
}

// InstructionCount returns the number of instructions in the chunk.
func (c *Chunk) InstructionCount() int {
	count := 0
	offset := 0
	for offset < len(c.Code) {
		offset += Opcode(c.Code[offset]).InstructionLen()
		count++
	}
	return count
}
