package hash

import (
	"encoding/binary"
	"math"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of the frozen hashing AST.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (count=4B, uint16=2B)
//   - Floats: IEEE 754 big-endian 8B, with -0 folded into +0
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Absent optional children: TagAbsent
//   - Child nodes: serialized inline (flat)
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of an HNode tree.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(node HNode) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.serializeNode(node)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeFloat64(v float64) {
	if v == 0 {
		v = 0
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) writeNodes(nodes []HNode) {
	s.writeUint32(uint32(len(nodes)))
	for _, n := range nodes {
		s.serializeNode(n)
	}
}

// writeOptional writes TagAbsent for a nil child.
func (s *serializer) writeOptional(node HNode) {
	if node == nil {
		s.writeByte(TagAbsent)
		return
	}
	s.serializeNode(node)
}

func (s *serializer) writeBlock(b *HBlock) {
	if b == nil {
		s.writeByte(TagAbsent)
		return
	}
	s.serializeNode(b)
}

func (s *serializer) serializeNode(node HNode) {
	switch n := node.(type) {
	case *HNumberLiteral:
		s.writeByte(TagNumberLiteral)
		s.writeFloat64(n.Value)

	case *HStringLiteral:
		s.writeByte(TagStringLiteral)
		s.writeString(n.Value)

	case *HBoolLiteral:
		s.writeByte(TagBoolLiteral)
		s.writeBool(n.Value)

	case *HNilLiteral:
		s.writeByte(TagNilLiteral)

	case *HArrayLiteral:
		s.writeByte(TagArrayLiteral)
		s.writeNodes(n.Elements)

	case *HLocalRef:
		s.writeByte(TagLocalRef)
		s.writeUint16(n.ScopeDepth)
		s.writeUint16(n.SlotIndex)

	case *HGlobalRef:
		s.writeByte(TagGlobalRef)
		s.writeString(n.Name)

	case *HSelfRef:
		s.writeByte(TagSelfRef)

	case *HAssign:
		s.writeByte(TagAssign)
		s.writeString(n.Op)
		s.serializeNode(n.Target)
		s.serializeNode(n.Value)

	case *HLogical:
		s.writeByte(TagLogical)
		s.writeString(n.Op)
		s.serializeNode(n.Left)
		s.serializeNode(n.Right)

	case *HBinary:
		s.writeByte(TagBinary)
		s.writeString(n.Op)
		s.serializeNode(n.Left)
		s.serializeNode(n.Right)

	case *HUnary:
		s.writeByte(TagUnary)
		s.writeString(n.Op)
		s.serializeNode(n.Operand)

	case *HCall:
		s.writeByte(TagCall)
		s.serializeNode(n.Callee)
		s.writeNodes(n.Args)

	case *HIndex:
		s.writeByte(TagIndex)
		s.serializeNode(n.Array)
		s.serializeNode(n.Index)

	case *HExprStmt:
		s.writeByte(TagExprStmt)
		s.serializeNode(n.Expr)

	case *HLocalDecl:
		s.writeByte(TagLocalDecl)
		s.serializeNode(n.Init)

	case *HGlobalDecl:
		s.writeByte(TagGlobalDecl)
		s.writeString(n.Name)
		s.serializeNode(n.Init)

	case *HFuncDecl:
		if n.Local {
			s.writeByte(TagLocalFnDecl)
		} else {
			s.writeByte(TagFuncDecl)
			s.writeString(n.Name)
		}
		s.writeUint16(uint16(n.Arity))
		s.writeNodes(n.Body)

	case *HBlock:
		s.writeByte(TagBlock)
		s.writeNodes(n.Stmts)

	case *HIf:
		s.writeByte(TagIf)
		s.serializeNode(n.Cond)
		s.writeBlock(n.Then)
		s.writeOptional(n.Else)

	case *HWhile:
		s.writeByte(TagWhile)
		s.serializeNode(n.Cond)
		s.writeBlock(n.Body)

	case *HFor:
		s.writeByte(TagFor)
		s.writeOptional(n.Init)
		s.writeOptional(n.Cond)
		s.writeOptional(n.Incr)
		s.writeBlock(n.Body)

	case *HPrint:
		s.writeByte(TagPrint)
		s.writeNodes(n.Args)

	case *HReturn:
		s.writeByte(TagReturn)
		s.writeOptional(n.Value)

	case *HBreak:
		s.writeByte(TagBreak)

	case *HContinue:
		s.writeByte(TagContinue)

	case *HProgram:
		s.writeByte(TagProgram)
		s.writeNodes(n.Stmts)

	default:
		s.writeByte(TagAbsent)
	}
}
