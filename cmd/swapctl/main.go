package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// app carries the resolved client and output streams for one invocation.
type app struct {
	client *client
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("swapctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprintln(stderr, usage()) }
	profilePath := fs.String("profile", defaultProfilePath(), "path to the TOML profile")
	endpoint := fs.String("endpoint", "", "swapd base URL (overrides the profile)")
	token := fs.String("token", "", "bearer token (overrides the profile)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}

	p, err := loadProfile(*profilePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *endpoint != "" {
		p.Endpoint = *endpoint
	}
	if *token != "" {
		p.Token = *token
	}
	timeout, err := p.timeout()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	a := &app{client: newClient(p.endpoint(), p.Token, timeout), stdout: stdout, stderr: stderr}

	cmd, cmdArgs := strings.ToLower(rest[0]), rest[1:]
	switch cmd {
	case "tokens":
		return a.runTokens(cmdArgs)
	case "rate":
		return a.runRate(cmdArgs)
	case "fee":
		return a.runFee(cmdArgs)
	case "charge":
		return a.runCharge(cmdArgs)
	case "quote":
		return a.runQuote(cmdArgs)
	case "swap":
		return a.runSwap(cmdArgs)
	case "balance":
		return a.runBalance(cmdArgs)
	case "allowance":
		return a.runAllowance(cmdArgs)
	case "transfer":
		return a.runTransfer(cmdArgs)
	case "approve":
		return a.runApprove(cmdArgs)
	case "history":
		return a.runHistory(cmdArgs)
	case "normalize":
		return runNormalize(cmdArgs, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command %q\n", rest[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	buf := &bytes.Buffer{}
	fmt.Fprintln(buf, "Usage: swapctl [--profile path] [--endpoint url] [--token jwt] <command> [flags]")
	fmt.Fprintln(buf, "Commands:")
	fmt.Fprintln(buf, "  tokens                        List registered tokens")
	fmt.Fprintln(buf, "  rate list|get|set             Inspect or update the rate table")
	fmt.Fprintln(buf, "  fee get|set                   Inspect or update the per-mille fee")
	fmt.Fprintln(buf, "  charge get|set                Inspect or update the service charge")
	fmt.Fprintln(buf, "  quote                         Preview a swap")
	fmt.Fprintln(buf, "  swap                          Execute a swap")
	fmt.Fprintln(buf, "  balance                       Show an account balance")
	fmt.Fprintln(buf, "  allowance                     Show a token allowance")
	fmt.Fprintln(buf, "  transfer                      Move funds to another account")
	fmt.Fprintln(buf, "  approve                       Authorise a spender")
	fmt.Fprintln(buf, "  history                       List committed swaps")
	fmt.Fprintln(buf, "  normalize                     Convert a human ratio to smallest-unit rate components")
	return strings.TrimRight(buf.String(), "\n")
}

func (a *app) call(method, path string, body interface{}, requireAuth bool) int {
	result, err := a.client.do(context.Background(), method, path, body, requireAuth)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	writeResult(a.stdout, result)
	return 0
}

func writeResult(w io.Writer, result json.RawMessage) {
	var decoded interface{}
	if err := json.Unmarshal(result, &decoded); err != nil {
		fmt.Fprintln(w, strings.TrimSpace(string(result)))
		return
	}
	pretty, _ := json.MarshalIndent(decoded, "", "  ")
	fmt.Fprintln(w, string(pretty))
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}
