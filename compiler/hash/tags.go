package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the hashing AST serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// all previously computed content hashes.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// AST node type tags. Each tag uniquely identifies a node kind in the
// serialized byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Literal values
	TagNumberLiteral byte = 0x01
	TagStringLiteral byte = 0x02
	TagBoolLiteral   byte = 0x03
	TagNilLiteral    byte = 0x04
	TagArrayLiteral  byte = 0x05

	// Variable references (de Bruijn indexed locals)
	TagLocalRef  byte = 0x08
	TagGlobalRef byte = 0x09
	TagSelfRef   byte = 0x0A

	// Expressions
	TagAssign  byte = 0x10
	TagLogical byte = 0x11
	TagBinary  byte = 0x12
	TagUnary   byte = 0x13
	TagCall    byte = 0x14
	TagIndex   byte = 0x15

	// Statements
	TagExprStmt    byte = 0x20
	TagLocalDecl   byte = 0x21
	TagGlobalDecl  byte = 0x22
	TagFuncDecl    byte = 0x23
	TagBlock       byte = 0x24
	TagIf          byte = 0x25
	TagWhile       byte = 0x26
	TagFor         byte = 0x27
	TagPrint       byte = 0x28
	TagReturn      byte = 0x29
	TagBreak       byte = 0x2A
	TagContinue    byte = 0x2B
	TagProgram     byte = 0x2C
	TagAbsent      byte = 0x2D // optional child left out
	TagLocalFnDecl byte = 0x2E
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagNumberLiteral, TagStringLiteral, TagBoolLiteral, TagNilLiteral, TagArrayLiteral,
	TagLocalRef, TagGlobalRef, TagSelfRef,
	TagAssign, TagLogical, TagBinary, TagUnary, TagCall, TagIndex,
	TagExprStmt, TagLocalDecl, TagGlobalDecl, TagFuncDecl, TagBlock,
	TagIf, TagWhile, TagFor, TagPrint, TagReturn, TagBreak, TagContinue,
	TagProgram, TagAbsent, TagLocalFnDecl,
}
