// Package disasm walks deployed EVM bytecode one instruction at a time.
//
// Counting opcodes on the raw bytes (or worse, on the hex text) is unsound:
// PUSH1..PUSH32 carry 1-32 bytes of arbitrary immediate data, and any of
// those data bytes can collide with the opcode being searched for. The
// iterator here tracks instruction boundaries so immediates are never
// mistaken for instructions.
package disasm

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core/vm"
)

// immediates maps every byte value to the number of immediate data bytes the
// instruction consumes. In legacy code only PUSH1..PUSH32 carry immediates;
// every other entry stays zero, including TLOAD and TSTORE.
var immediates [256]uint8

func init() {
	for op := vm.PUSH1; op <= vm.PUSH32; op++ {
		immediates[op] = uint8(op - vm.PUSH0)
	}
}

// MalformedHexError reports hex text that cannot be decoded into bytecode.
type MalformedHexError struct {
	Input string
	Err   error
}

func (e *MalformedHexError) Error() string {
	return fmt.Sprintf("malformed hex %q: %v", e.Input, e.Err)
}

func (e *MalformedHexError) Unwrap() error { return e.Err }

// DecodeHex decodes bytecode from hex text, with or without a 0x prefix.
// An empty string or a bare "0x" (what eth_getCode returns for accounts
// without code) decodes to empty bytecode.
func DecodeHex(s string) ([]byte, error) {
	t := s
	if len(t) >= 2 && (t[:2] == "0x" || t[:2] == "0X") {
		t = t[2:]
	}
	b, err := hex.DecodeString(t)
	if err != nil {
		return nil, &MalformedHexError{Input: s, Err: err}
	}
	return b, nil
}

// EncodeHex renders bytecode as lowercase hex without a prefix.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// OpcodeName is the lowercase mnemonic for op, e.g. "tstore" for 0x5d.
func OpcodeName(op vm.OpCode) string {
	return strings.ToLower(op.String())
}

// Iterator yields the instructions of a bytecode sequence in program order.
// It is lazy: the caller may stop after any instruction, and the only state
// carried between steps is the cursor.
type Iterator struct {
	code      []byte
	pc        uint64
	op        vm.OpCode
	arg       []byte
	started   bool
	truncated bool
}

// NewIterator creates an instruction iterator over code.
func NewIterator(code []byte) *Iterator {
	return &Iterator{code: code}
}

// Next advances to the next instruction and reports whether one exists.
func (it *Iterator) Next() bool {
	if it.started {
		it.pc += 1 + uint64(len(it.arg))
	} else {
		it.started = true
	}
	if it.pc >= uint64(len(it.code)) {
		return false
	}
	it.op = vm.OpCode(it.code[it.pc])
	it.arg = nil
	if n := uint64(immediates[it.op]); n > 0 {
		end := it.pc + 1 + n
		if end > uint64(len(it.code)) {
			// Code ending mid-push. The EVM zero-pads reads past the end of
			// code, so the trailing immediate is clamped to the bytes that
			// exist rather than rejected.
			end = uint64(len(it.code))
			it.truncated = true
		}
		it.arg = it.code[it.pc+1 : end]
	}
	return true
}

// Op returns the opcode of the current instruction.
func (it *Iterator) Op() vm.OpCode { return it.op }

// PC returns the byte offset of the current instruction.
func (it *Iterator) PC() uint64 { return it.pc }

// Arg returns the immediate data of the current instruction, nil for
// instructions that carry none.
func (it *Iterator) Arg() []byte { return it.arg }

// Truncated reports whether the code ended in the middle of a push
// immediate. Meaningful once Next has returned false or the final
// instruction has been observed.
func (it *Iterator) Truncated() bool { return it.truncated }
