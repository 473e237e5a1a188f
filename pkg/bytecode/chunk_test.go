package bytecode

import (
	"testing"
)

func TestNewChunk(t *testing.T) {
	c := NewChunk("<script>")

	if c.Name != "<script>" {
		t.Errorf("Name = %q, want <script>", c.Name)
	}
	if len(c.Code) != 0 || len(c.Lines) != 0 || len(c.Constants) != 0 {
		t.Error("new chunk should be empty")
	}
	if c.CurrentOffset() != 0 {
		t.Errorf("CurrentOffset = %d, want 0", c.CurrentOffset())
	}
}

func TestChunkEmit(t *testing.T) {
	c := NewChunk("f")

	if off := c.Emit(OpNil, 1); off != 0 {
		t.Errorf("first Emit offset = %d, want 0", off)
	}
	if off := c.EmitWithOperand(OpGetLocal, 2, 7); off != 1 {
		t.Errorf("EmitWithOperand offset = %d, want 1", off)
	}
	if off := c.EmitU16(OpConst, 3, 0x0102); off != 3 {
		t.Errorf("EmitU16 offset = %d, want 3", off)
	}

	wantCode := []byte{byte(OpNil), byte(OpGetLocal), 7, byte(OpConst), 0x01, 0x02}
	if string(c.Code) != string(wantCode) {
		t.Errorf("Code = % X, want % X", c.Code, wantCode)
	}
	wantLines := []int{1, 2, 2, 3, 3, 3}
	if len(c.Lines) != len(wantLines) {
		t.Fatalf("Lines has %d entries, want %d", len(c.Lines), len(wantLines))
	}
	for i, want := range wantLines {
		if c.Lines[i] != want {
			t.Errorf("Lines[%d] = %d, want %d", i, c.Lines[i], want)
		}
	}
}

func TestChunkLineAt(t *testing.T) {
	c := NewChunk("f")
	c.Emit(OpNil, 4)
	c.Emit(OpReturn, 5)

	tests := []struct {
		offset int
		want   int
	}{
		{0, 4},
		{1, 5},
		{2, 0},
		{-1, 0},
	}
	for _, tt := range tests {
		if got := c.LineAt(tt.offset); got != tt.want {
			t.Errorf("LineAt(%d) = %d, want %d", tt.offset, got, tt.want)
		}
	}
}

func TestChunkAddConstantDeduplicates(t *testing.T) {
	c := NewChunk("f")

	tests := []struct {
		v    Value
		want int
	}{
		{NumberValue(1), 0},
		{StringValue("1"), 1},
		{NumberValue(1), 0},
		{BoolValue(true), 2},
		{Nil, 3},
		{StringValue("1"), 1},
		{BoolValue(true), 2},
	}
	for i, tt := range tests {
		if got := c.AddConstant(tt.v); got != tt.want {
			t.Errorf("AddConstant #%d (%s) = %d, want %d", i, tt.v.Repr(), got, tt.want)
		}
	}
	if len(c.Constants) != 4 {
		t.Errorf("pool size = %d, want 4", len(c.Constants))
	}
}

func TestChunkAddConstantFunctionsNotShared(t *testing.T) {
	c := NewChunk("f")
	fn := &Function{Name: "g", Chunk: NewChunk("g")}

	a := c.AddConstant(FunctionValue(fn))
	b := c.AddConstant(FunctionValue(fn))
	if a == b {
		t.Errorf("function constants share index %d", a)
	}
}

func TestChunkJumpPatching(t *testing.T) {
	c := NewChunk("f")
	placeholder := c.EmitJump(OpJumpFalse, 1)
	if placeholder != 1 {
		t.Fatalf("placeholder = %d, want 1", placeholder)
	}
	if c.Code[1] != 0xFF || c.Code[2] != 0xFF {
		t.Errorf("placeholder bytes = % X, want FF FF", c.Code[1:3])
	}

	c.Emit(OpNil, 1)
	c.Emit(OpPop, 1)
	if err := c.PatchJump(placeholder); err != nil {
		t.Fatalf("PatchJump: %v", err)
	}
	// Jump lands after the two filler instructions.
	if got := c.readI16(placeholder); got != 2 {
		t.Errorf("patched delta = %d, want 2", got)
	}
}

func TestChunkEmitLoop(t *testing.T) {
	c := NewChunk("f")
	loopStart := c.CurrentOffset()
	c.Emit(OpNil, 1)
	c.Emit(OpPop, 1)
	if err := c.EmitLoop(loopStart, 1); err != nil {
		t.Fatalf("EmitLoop: %v", err)
	}

	if Opcode(c.Code[2]) != OpJump {
		t.Fatalf("loop opcode = %s, want JUMP", Opcode(c.Code[2]))
	}
	// From offset 5 (after the operand) back to 0.
	if got := c.readI16(3); got != -5 {
		t.Errorf("loop delta = %d, want -5", got)
	}
}

func TestChunkPatchJumpTooFar(t *testing.T) {
	c := NewChunk("f")
	placeholder := c.EmitJump(OpJump, 1)
	if err := c.PatchJumpTo(placeholder, placeholder+2+40000); err == nil {
		t.Error("expected error for a jump beyond 16 bits")
	}
}

func TestFunctionCallable(t *testing.T) {
	fn := &Function{Name: "add", Params: []string{"a", "b"}, Chunk: NewChunk("add")}
	var c Callable = fn
	if c.FuncName() != "add" || c.Arity() != 2 {
		t.Errorf("got %s/%d, want add/2", c.FuncName(), c.Arity())
	}
}
