package disasm

import (
	"github.com/ethereum/go-ethereum/core/vm"
)

// TargetOpcodes are the transient storage opcodes introduced by EIP-1153.
var TargetOpcodes = []vm.OpCode{vm.TLOAD, vm.TSTORE}

// Tally is the outcome of one census pass over a contract's code.
type Tally struct {
	// Counts has an entry for every tracked opcode, zero included, keyed
	// by lowercase mnemonic.
	Counts map[string]uint64
	// Instructions is the total number of instructions decoded.
	Instructions uint64
	// Truncated is set when the code ended mid-push.
	Truncated bool
}

// UsesTarget reports whether any tracked opcode occurred at least once.
func (t Tally) UsesTarget() bool {
	for _, n := range t.Counts {
		if n > 0 {
			return true
		}
	}
	return false
}

// Census counts occurrences of a fixed set of opcodes at instruction
// boundaries.
type Census struct {
	targets []vm.OpCode
}

// NewCensus creates a census for the given opcodes, defaulting to
// TargetOpcodes when none are given.
func NewCensus(targets ...vm.OpCode) *Census {
	if len(targets) == 0 {
		targets = TargetOpcodes
	}
	return &Census{targets: append([]vm.OpCode(nil), targets...)}
}

// Count disassembles code and tallies the tracked opcodes in a single pass.
// Bytes inside push immediates are data and are never counted.
func (c *Census) Count(code []byte) Tally {
	counts := make(map[string]uint64, len(c.targets))
	for _, op := range c.targets {
		counts[OpcodeName(op)] = 0
	}
	t := Tally{Counts: counts}

	it := NewIterator(code)
	for it.Next() {
		t.Instructions++
		for _, op := range c.targets {
			if it.Op() == op {
				counts[OpcodeName(op)]++
				break
			}
		}
	}
	t.Truncated = it.Truncated()
	return t
}
