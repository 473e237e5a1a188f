package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chazu/myl/compiler"
)

// HashProgram computes the SHA-256 content hash of a parsed program.
//
// The hash is computed over a deterministic serialization of the program's
// normalized AST with de Bruijn indexing for locals. Two programs that
// differ only in whitespace, comments, redundant parentheses or the names
// of local variables and parameters produce the same hash.
func HashProgram(prog *compiler.Program) [32]byte {
	return sha256.Sum256(Serialize(NormalizeProgram(prog)))
}

// HashFunction computes the content hash of a single function declaration.
func HashFunction(fn *compiler.FuncDecl) [32]byte {
	return sha256.Sum256(Serialize(NormalizeFunction(fn)))
}

// Short renders the first 8 bytes of a hash as hex.
func Short(h [32]byte) string {
	return hex.EncodeToString(h[:8])
}
