// Package analysis turns contract addresses into per-contract EIP-1153
// usage reports and batch-level adoption statistics.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evmsec/eip1153-analysis/analysis/disasm"
)

// Result is the outcome of analyzing a single contract address. It is
// immutable once built; failures are carried in ErrorMessage instead of
// being propagated.
type Result struct {
	Address            string            `json:"address"`
	BytecodeSizeBytes  int               `json:"bytecodeSizeBytes"`
	TargetOpcodeCounts map[string]uint64 `json:"targetOpcodeCounts"`
	UsesTargetFeature  bool              `json:"usesTargetFeature"`
	TotalInstructions  uint64            `json:"totalInstructions"`
	TruncatedCode      bool              `json:"truncatedCode"`
	Succeeded          bool              `json:"succeeded"`
	ErrorMessage       string            `json:"errorMessage,omitempty"`
}

// Summary aggregates a batch of results. It is derived from the results and
// never persisted on its own.
type Summary struct {
	Total        int     `json:"total"`
	UsingFeature int     `json:"countUsingFeature"`
	NotUsing     int     `json:"countNotUsing"`
	Failed       int     `json:"failed"`
	AdoptionRate float64 `json:"adoptionRate"`
}

// CodeSource resolves a contract address to its deployed bytecode as a hex
// string. A codeless account yields "0x". Implementations must be safe for
// concurrent use.
type CodeSource interface {
	Code(ctx context.Context, addr common.Address) (string, error)
}

// Analyzer runs the fetch, decode, disassemble, census pipeline for one
// address at a time.
type Analyzer struct {
	source  CodeSource
	census  *disasm.Census
	timeout time.Duration
}

// NewAnalyzer creates an analyzer over source. A non-zero timeout bounds
// every bytecode fetch.
func NewAnalyzer(source CodeSource, timeout time.Duration) *Analyzer {
	return &Analyzer{
		source:  source,
		census:  disasm.NewCensus(),
		timeout: timeout,
	}
}

// Analyze produces the Result for one address. It never returns an error:
// invalid addresses, fetch failures and malformed bytecode are captured in
// the Result so one bad address cannot abort a batch.
func (a *Analyzer) Analyze(ctx context.Context, address string) Result {
	if !common.IsHexAddress(address) {
		return failedResult(address, fmt.Errorf("invalid address %q", address))
	}
	addr := common.HexToAddress(address)

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	codeHex, err := a.source.Code(ctx, addr)
	if err != nil {
		return failedResult(addr.Hex(), err)
	}
	code, err := disasm.DecodeHex(codeHex)
	if err != nil {
		return failedResult(addr.Hex(), err)
	}

	tally := a.census.Count(code)
	return Result{
		Address:            addr.Hex(),
		BytecodeSizeBytes:  len(code),
		TargetOpcodeCounts: tally.Counts,
		UsesTargetFeature:  tally.UsesTarget(),
		TotalInstructions:  tally.Instructions,
		TruncatedCode:      tally.Truncated,
		Succeeded:          true,
	}
}

func failedResult(address string, err error) Result {
	return Result{
		Address:      address,
		ErrorMessage: err.Error(),
	}
}

// Summarize aggregates results. Total counts every attempt; the adoption
// rate is computed over successful results only.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	var succeeded int
	for _, r := range results {
		if !r.Succeeded {
			s.Failed++
			continue
		}
		succeeded++
		if r.UsesTargetFeature {
			s.UsingFeature++
		} else {
			s.NotUsing++
		}
	}
	if succeeded > 0 {
		s.AdoptionRate = float64(s.UsingFeature) / float64(succeeded)
	}
	return s
}
