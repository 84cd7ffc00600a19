package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/evmsec/eip1153-analysis/analysis"
)

const defaultOutputFile = "eip1153_scan_results.json"

var (
	rpcFlag = &cli.StringFlag{
		Name:  "rpc",
		Usage: "JSON-RPC endpoint URL (overrides RPC_API_KEY/ALCHEMY_API_KEY)",
	}
	batchFlag = &cli.StringFlag{
		Name:  "batch",
		Usage: "file with one contract address per line",
	}
	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Value: 30 * time.Second,
		Usage: "per-address bytecode fetch timeout",
	}
	parallelFlag = &cli.IntFlag{
		Name:  "parallel",
		Value: 1,
		Usage: "number of concurrent fetches in batch mode",
	}
	outFlag = &cli.StringFlag{
		Name:  "out",
		Value: defaultOutputFile,
		Usage: "batch results output file",
	}
)

func main() {
	app := &cli.App{
		Name:  "eip1153-scan",
		Usage: "detect EIP-1153 transient storage opcodes in deployed contract bytecode",
		Commands: []*cli.Command{
			{
				Name:      "scan",
				Usage:     "analyze one contract, or a file of contracts with --batch",
				ArgsUsage: "<address>",
				Flags:     []cli.Flag{rpcFlag, batchFlag, timeoutFlag, parallelFlag, outFlag},
				Action:    scan,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// endpointURL resolves the RPC endpoint before any analysis starts. A
// missing credential is a configuration error, not a per-request one.
func endpointURL(ctx *cli.Context) (string, error) {
	if url := ctx.String(rpcFlag.Name); url != "" {
		return url, nil
	}
	key := os.Getenv("RPC_API_KEY")
	if key == "" {
		key = os.Getenv("ALCHEMY_API_KEY")
	}
	if key == "" {
		return "", fmt.Errorf("RPC_API_KEY environment variable not set")
	}
	return "https://eth-mainnet.g.alchemy.com/v2/" + key, nil
}

func scan(ctx *cli.Context) error {
	batchFile := ctx.String(batchFlag.Name)
	if batchFile == "" && ctx.NArg() < 1 {
		cli.ShowSubcommandHelp(ctx)
		return fmt.Errorf("an address or --batch <file> is required")
	}

	url, err := endpointURL(ctx)
	if err != nil {
		return err
	}
	source, err := analysis.NewRPCCodeSource(ctx.Context, url)
	if err != nil {
		return err
	}
	defer source.Close()
	analyzer := analysis.NewAnalyzer(source, ctx.Duration(timeoutFlag.Name))

	if batchFile != "" {
		return scanBatch(ctx, analyzer, batchFile)
	}
	return scanSingle(ctx, analyzer)
}

func scanSingle(ctx *cli.Context, analyzer *analysis.Analyzer) error {
	address := ctx.Args().First()
	res := analyzer.Analyze(ctx.Context, address)
	if !res.Succeeded {
		return fmt.Errorf("analyzing %s: %s", res.Address, res.ErrorMessage)
	}
	printResult(res)
	return nil
}

func scanBatch(ctx *cli.Context, analyzer *analysis.Analyzer, path string) error {
	addresses, err := readAddressFile(path)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Batch analysis started", "contracts", len(addresses), "parallel", ctx.Int(parallelFlag.Name))
	batch := analysis.NewBatch(analyzer, ctx.Int(parallelFlag.Name))
	results := batch.Run(runCtx, addresses)

	summary := analysis.Summarize(results)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Batch Analysis Summary")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Total Contracts:     %d\n", summary.Total)
	fmt.Printf("Using EIP-1153:      %d\n", summary.UsingFeature)
	fmt.Printf("Not Using EIP-1153:  %d\n", summary.NotUsing)
	fmt.Printf("Failed:              %d\n", summary.Failed)
	fmt.Printf("Adoption Rate:       %.1f%%\n", summary.AdoptionRate*100)
	fmt.Println(strings.Repeat("=", 60))

	out := ctx.String(outFlag.Name)
	if err := analysis.WriteResults(out, results); err != nil {
		return err
	}
	fmt.Printf("Results exported to %s\n", out)
	return nil
}

// readAddressFile reads one address per line, ignoring blank lines.
func readAddressFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	var addresses []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			addresses = append(addresses, line)
		}
	}
	return addresses, nil
}

func printResult(r analysis.Result) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("EIP-1153 Bytecode Analysis")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Contract Address:  %s\n", r.Address)
	fmt.Printf("Bytecode Size:     %d bytes\n", r.BytecodeSizeBytes)
	fmt.Printf("Instructions:      %d\n", r.TotalInstructions)
	fmt.Printf("TSTORE (0x5d):     %d occurrences\n", r.TargetOpcodeCounts["tstore"])
	fmt.Printf("TLOAD (0x5c):      %d occurrences\n", r.TargetOpcodeCounts["tload"])
	fmt.Printf("Uses EIP-1153:     %v\n", r.UsesTargetFeature)
	if r.TruncatedCode {
		fmt.Println("Warning:           code ends mid-push, trailing immediate clamped")
	}
	fmt.Println(strings.Repeat("=", 60))
}
