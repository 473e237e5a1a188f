package hash

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestSerialize_Deterministic(t *testing.T) {
	node := &HFuncDecl{
		Name:  "add",
		Arity: 2,
		Body: []HNode{
			&HReturn{Value: &HBinary{
				Op:    "+",
				Left:  &HLocalRef{ScopeDepth: 0, SlotIndex: 0},
				Right: &HNumberLiteral{Value: 42},
			}},
		},
	}

	data1 := Serialize(node)
	data2 := Serialize(node)

	if !bytes.Equal(data1, data2) {
		t.Error("serialization is not deterministic")
	}
}

func TestSerialize_VersionPrefix(t *testing.T) {
	data := Serialize(&HNilLiteral{})

	if len(data) != 2 {
		t.Fatalf("length: got %d, want 2", len(data))
	}
	if data[0] != HashVersion {
		t.Errorf("version prefix: got 0x%02X, want 0x%02X", data[0], HashVersion)
	}
	if data[1] != TagNilLiteral {
		t.Errorf("tag: got 0x%02X, want 0x%02X", data[1], TagNilLiteral)
	}
}

func TestSerialize_NumberLiteral(t *testing.T) {
	data := Serialize(&HNumberLiteral{Value: 1.5})

	if len(data) != 10 {
		t.Fatalf("length: got %d, want 10", len(data))
	}
	if data[1] != TagNumberLiteral {
		t.Errorf("tag: got 0x%02X, want 0x%02X", data[1], TagNumberLiteral)
	}
	bits := binary.BigEndian.Uint64(data[2:])
	if got := math.Float64frombits(bits); got != 1.5 {
		t.Errorf("value: got %v, want 1.5", got)
	}
}

func TestSerialize_NegativeZeroFolded(t *testing.T) {
	pos := Serialize(&HNumberLiteral{Value: 0})
	neg := Serialize(&HNumberLiteral{Value: math.Copysign(0, -1)})
	if !bytes.Equal(pos, neg) {
		t.Error("-0 and 0 should serialize identically")
	}
}

func TestSerialize_StringLengthPrefix(t *testing.T) {
	data := Serialize(&HStringLiteral{Value: "héllo"})

	want := []byte{HashVersion, TagStringLiteral, 0, 0, 0, 6}
	want = append(want, "héllo"...)
	if !bytes.Equal(data, want) {
		t.Errorf("got % X, want % X", data, want)
	}
}

func TestSerialize_LocalRef(t *testing.T) {
	data := Serialize(&HLocalRef{ScopeDepth: 1, SlotIndex: 258})
	want := []byte{HashVersion, TagLocalRef, 0x00, 0x01, 0x01, 0x02}
	if !bytes.Equal(data, want) {
		t.Errorf("got % X, want % X", data, want)
	}
}

func TestSerialize_AbsentChildren(t *testing.T) {
	withValue := Serialize(&HReturn{Value: &HNilLiteral{}})
	bare := Serialize(&HReturn{})

	if bytes.Equal(withValue, bare) {
		t.Error("return nil and bare return should serialize differently")
	}
	want := []byte{HashVersion, TagReturn, TagAbsent}
	if !bytes.Equal(bare, want) {
		t.Errorf("bare return: got % X, want % X", bare, want)
	}
}

func TestSerialize_DistinguishesStructure(t *testing.T) {
	tests := []struct {
		name string
		a, b HNode
	}{
		{
			"operator",
			&HBinary{Op: "+", Left: &HNumberLiteral{Value: 1}, Right: &HNumberLiteral{Value: 2}},
			&HBinary{Op: "-", Left: &HNumberLiteral{Value: 1}, Right: &HNumberLiteral{Value: 2}},
		},
		{
			"operand order",
			&HBinary{Op: "-", Left: &HNumberLiteral{Value: 1}, Right: &HNumberLiteral{Value: 2}},
			&HBinary{Op: "-", Left: &HNumberLiteral{Value: 2}, Right: &HNumberLiteral{Value: 1}},
		},
		{
			"global name",
			&HGlobalRef{Name: "a"},
			&HGlobalRef{Name: "b"},
		},
		{
			"local slot",
			&HLocalRef{SlotIndex: 0},
			&HLocalRef{SlotIndex: 1},
		},
		{
			"string vs number",
			&HStringLiteral{Value: "1"},
			&HNumberLiteral{Value: 1},
		},
		{
			"local vs global function",
			&HFuncDecl{Local: true},
			&HFuncDecl{Name: ""},
		},
		{
			"array nesting",
			&HArrayLiteral{Elements: []HNode{&HArrayLiteral{}, &HNilLiteral{}}},
			&HArrayLiteral{Elements: []HNode{&HArrayLiteral{Elements: []HNode{&HNilLiteral{}}}}},
		},
		{
			"if else",
			&HIf{Cond: &HBoolLiteral{Value: true}, Then: &HBlock{}},
			&HIf{Cond: &HBoolLiteral{Value: true}, Then: &HBlock{}, Else: &HBlock{}},
		},
	}

	for _, tc := range tests {
		if bytes.Equal(Serialize(tc.a), Serialize(tc.b)) {
			t.Errorf("%s: serializations should differ", tc.name)
		}
	}
}
