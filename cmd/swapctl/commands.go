package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"rateswap/native/exchange"
)

// maxDecimals keeps 10^decimals within uint256.
const maxDecimals = 77

func (a *app) runTokens(args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(a.stderr, "Usage: swapctl tokens")
		return 1
	}
	return a.call(http.MethodGet, "/v1/tokens", nil, false)
}

func (a *app) runRate(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.stderr, "Usage: swapctl rate <list|get|set> ...")
		return 1
	}
	switch strings.ToLower(args[0]) {
	case "list":
		return a.call(http.MethodGet, "/v1/rates", nil, false)
	case "get":
		if len(args) != 3 {
			fmt.Fprintln(a.stderr, "Usage: swapctl rate get <from> <to>")
			return 1
		}
		return a.call(http.MethodGet, ratePath(args[1], args[2]), nil, false)
	case "set":
		fs := newFlagSet("rate set", a.stderr)
		rateFrom := fs.String("rate-from", "", "input component in smallest units")
		rateTo := fs.String("rate-to", "", "output component in smallest units")
		human := fs.Bool("human", false, "treat the components as decimal values scaled by the asset decimals")
		fromDecimals := fs.Uint("from-decimals", 18, "decimals of the input asset, with --human")
		toDecimals := fs.Uint("to-decimals", 18, "decimals of the output asset, with --human")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if fs.NArg() != 2 || *rateFrom == "" || *rateTo == "" {
			fmt.Fprintln(a.stderr, "Usage: swapctl rate set [--human --from-decimals N --to-decimals N] --rate-from N --rate-to N <from> <to>")
			return 1
		}
		body := map[string]string{"rate_from": *rateFrom, "rate_to": *rateTo}
		if *human {
			if *fromDecimals > maxDecimals || *toDecimals > maxDecimals {
				fmt.Fprintf(a.stderr, "Error: decimals must not exceed %d\n", maxDecimals)
				return 1
			}
			from, to, err := exchange.NormalizeRate(uint8(*fromDecimals), uint8(*toDecimals), *rateFrom, *rateTo)
			if err != nil {
				fmt.Fprintf(a.stderr, "Error: %v\n", err)
				return 1
			}
			body = map[string]string{"rate_from": from.Dec(), "rate_to": to.Dec()}
		}
		return a.call(http.MethodPut, ratePath(fs.Arg(0), fs.Arg(1)), body, true)
	default:
		fmt.Fprintf(a.stderr, "Unknown rate subcommand %q\n", args[0])
		return 1
	}
}

func ratePath(from, to string) string {
	return "/v1/rates/" + url.PathEscape(strings.TrimSpace(from)) + "/" + url.PathEscape(strings.TrimSpace(to))
}

func (a *app) runFee(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.stderr, "Usage: swapctl fee <get|set> ...")
		return 1
	}
	switch strings.ToLower(args[0]) {
	case "get":
		return a.call(http.MethodGet, "/v1/fee", nil, false)
	case "set":
		if len(args) != 2 {
			fmt.Fprintln(a.stderr, "Usage: swapctl fee set <per-mille>")
			return 1
		}
		fee, err := strconv.ParseUint(strings.TrimSpace(args[1]), 10, 64)
		if err != nil {
			fmt.Fprintf(a.stderr, "invalid fee: %v\n", err)
			return 1
		}
		if fee >= exchange.MaxFeeMille {
			fmt.Fprintf(a.stderr, "fee must be below %d\n", exchange.MaxFeeMille)
			return 1
		}
		return a.call(http.MethodPut, "/v1/fee", map[string]uint64{"fee_mille": fee}, true)
	default:
		fmt.Fprintf(a.stderr, "Unknown fee subcommand %q\n", args[0])
		return 1
	}
}

func (a *app) runCharge(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.stderr, "Usage: swapctl charge <get|set> ...")
		return 1
	}
	switch strings.ToLower(args[0]) {
	case "get":
		return a.call(http.MethodGet, "/v1/service-charge", nil, false)
	case "set":
		fs := newFlagSet("charge set", a.stderr)
		minimum := fs.String("minimum", "", "minimum native value in smallest units")
		refund := fs.Bool("refund-excess", false, "refund attached value above the minimum")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if *minimum == "" {
			fmt.Fprintln(a.stderr, "Usage: swapctl charge set --minimum N [--refund-excess]")
			return 1
		}
		body := map[string]interface{}{"minimum": *minimum, "refund_excess": *refund}
		return a.call(http.MethodPut, "/v1/service-charge", body, true)
	default:
		fmt.Fprintf(a.stderr, "Unknown charge subcommand %q\n", args[0])
		return 1
	}
}

type tradeFlags struct {
	from     *string
	to       *string
	amount   *string
	decimals *int
}

func bindTrade(fsName string, stderr io.Writer) (*flag.FlagSet, tradeFlags) {
	fs := newFlagSet(fsName, stderr)
	return fs, tradeFlags{
		from:     fs.String("from", "", "input asset (native, symbol or address)"),
		to:       fs.String("to", "", "output asset (native, symbol or address)"),
		amount:   fs.String("amount", "", "input amount"),
		decimals: fs.Int("decimals", -1, "treat --amount as a decimal value with this many places"),
	}
}

func (t tradeFlags) body() (map[string]string, error) {
	if strings.TrimSpace(*t.from) == "" || strings.TrimSpace(*t.to) == "" || strings.TrimSpace(*t.amount) == "" {
		return nil, fmt.Errorf("--from, --to and --amount are required")
	}
	amount, err := scaleAmount(*t.amount, *t.decimals)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	return map[string]string{"from": *t.from, "to": *t.to, "amount": amount}, nil
}

func (a *app) runQuote(args []string) int {
	fs, trade := bindTrade("quote", a.stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	body, err := trade.body()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	return a.call(http.MethodPost, "/v1/quote", body, false)
}

func (a *app) runSwap(args []string) int {
	fs, trade := bindTrade("swap", a.stderr)
	value := fs.String("value", "", "native value to attach in smallest units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	body, err := trade.body()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	if strings.TrimSpace(*value) != "" {
		body["attached_value"] = strings.TrimSpace(*value)
	}
	return a.call(http.MethodPost, "/v1/swap", body, true)
}

func (a *app) runBalance(args []string) int {
	fs := newFlagSet("balance", a.stderr)
	asset := fs.String("asset", "native", "asset to inspect")
	account := fs.String("account", "", "account address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*account) == "" {
		fmt.Fprintln(a.stderr, "Usage: swapctl balance --account 0x... [--asset native]")
		return 1
	}
	query := url.Values{"asset": {*asset}, "account": {*account}}
	return a.call(http.MethodGet, "/v1/ledger/balance?"+query.Encode(), nil, false)
}

func (a *app) runAllowance(args []string) int {
	fs := newFlagSet("allowance", a.stderr)
	asset := fs.String("asset", "", "token")
	owner := fs.String("owner", "", "owner address")
	spender := fs.String("spender", "", "spender address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *asset == "" || *owner == "" || *spender == "" {
		fmt.Fprintln(a.stderr, "Usage: swapctl allowance --asset TOKEN --owner 0x... --spender 0x...")
		return 1
	}
	query := url.Values{"asset": {*asset}, "owner": {*owner}, "spender": {*spender}}
	return a.call(http.MethodGet, "/v1/ledger/allowance?"+query.Encode(), nil, false)
}

func (a *app) runTransfer(args []string) int {
	fs := newFlagSet("transfer", a.stderr)
	asset := fs.String("asset", "native", "asset to move")
	to := fs.String("to", "", "recipient address")
	amount := fs.String("amount", "", "amount in smallest units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *to == "" || *amount == "" {
		fmt.Fprintln(a.stderr, "Usage: swapctl transfer --to 0x... --amount N [--asset native]")
		return 1
	}
	body := map[string]string{"asset": *asset, "to": *to, "amount": *amount}
	return a.call(http.MethodPost, "/v1/ledger/transfer", body, true)
}

func (a *app) runApprove(args []string) int {
	fs := newFlagSet("approve", a.stderr)
	asset := fs.String("asset", "", "token")
	spender := fs.String("spender", "", "spender address")
	amount := fs.String("amount", "", "amount in smallest units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *asset == "" || *spender == "" || *amount == "" {
		fmt.Fprintln(a.stderr, "Usage: swapctl approve --asset TOKEN --spender 0x... --amount N")
		return 1
	}
	body := map[string]string{"asset": *asset, "spender": *spender, "amount": *amount}
	return a.call(http.MethodPost, "/v1/ledger/approve", body, true)
}

func (a *app) runHistory(args []string) int {
	fs := newFlagSet("history", a.stderr)
	account := fs.String("account", "", "only swaps by this caller")
	limit := fs.Int("limit", 0, "maximum receipts to return")
	id := fs.String("id", "", "fetch a single receipt by id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *id != "" {
		return a.call(http.MethodGet, "/v1/swaps/"+url.PathEscape(*id), nil, false)
	}
	query := url.Values{}
	if *account != "" {
		query.Set("account", *account)
	}
	if *limit > 0 {
		query.Set("limit", strconv.Itoa(*limit))
	}
	path := "/v1/swaps"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return a.call(http.MethodGet, path, nil, false)
}

func runNormalize(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("normalize", stderr)
	fromDecimals := fs.Uint("from-decimals", 18, "decimals of the input asset")
	toDecimals := fs.Uint("to-decimals", 18, "decimals of the output asset")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "Usage: swapctl normalize [--from-decimals 18] [--to-decimals 18] <from-amount> <to-amount>")
		return 1
	}
	if *fromDecimals > maxDecimals || *toDecimals > maxDecimals {
		fmt.Fprintf(stderr, "Error: decimals must not exceed %d\n", maxDecimals)
		return 1
	}
	rateFrom, rateTo, err := exchange.NormalizeRate(uint8(*fromDecimals), uint8(*toDecimals), fs.Arg(0), fs.Arg(1))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "rate_from: %s\n", rateFrom.Dec())
	fmt.Fprintf(stdout, "rate_to: %s\n", rateTo.Dec())
	return 0
}

func scaleAmount(raw string, decimals int) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if decimals < 0 {
		return trimmed, nil
	}
	if decimals > maxDecimals {
		return "", fmt.Errorf("decimals must not exceed %d", maxDecimals)
	}
	scaled, err := exchange.ToBaseUnits(trimmed, uint8(decimals))
	if err != nil {
		return "", err
	}
	return scaled.Dec(), nil
}
