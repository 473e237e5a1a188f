// Package bytecode provides the runtime shared by both myl execution
// backends and the stack-based virtual machine that runs compiled code.
//
// The bytecode format is designed for:
//   - Compact representation (1-3 bytes per instruction)
//   - Fast decoding (one opcode byte, fixed-width big-endian operands)
//   - Readable listings (every byte carries its source line)
//
// # Architecture Overview
//
// The package consists of several components:
//
//   - Values: nil, booleans, float64 numbers, strings, shared mutable
//     arrays, user functions and builtins. Operator semantics (Add, Arith,
//     Compare, IndexGet, ...) live here so the tree-walking interpreter and
//     the VM agree on every result and every error message.
//
//   - Opcodes: stack instructions grouped by category. Each opcode has a
//     metadata entry giving its name, stack effect and operand length.
//
//   - Chunk: the compiled body of one function: code bytes, a parallel
//     line table and a constant pool. Top-level code compiles to a chunk
//     named "<script>".
//
//   - VM: executes a script Function. Each call pushes a CallFrame whose
//     base points at local slot 0; the callee value sits just below it.
//     Call depth is bounded by MaxFrames.
//
//   - Globals: the name table that persists across runs of one session.
//
// # Runtime Errors
//
// Every failure is a *RuntimeError carrying an ErrorKind, a message and
// the source line of the instruction that failed. A run that fails leaves
// output already written by print in place and discards its stacks.
package bytecode
