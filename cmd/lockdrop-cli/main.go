package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const tokenEnv = "LOCKDROP_RPC_TOKEN"

var (
	rpcEndpoint  = defaultRPCEndpoint() // Defaults to localhost, can be overridden via RPC_URL or --rpc flag
	rpcAuthToken = os.Getenv(tokenEnv)
	rpcCall      = callRPC
	httpClient   = &http.Client{Timeout: 30 * time.Second}
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	rest := args[1:]
	switch args[0] {
	case "config":
		return runQueryCommand("lockdrop_config", rest, stdout, stderr)
	case "state":
		return runQueryCommand("lockdrop_state", rest, stdout, stderr)
	case "phase":
		return runQueryCommand("lockdrop_phase", rest, stdout, stderr)
	case "user":
		return runUserCommand(rest, stdout, stderr)
	case "events":
		return runEventsCommand(rest, stdout, stderr)
	case "deposit":
		return runLockCommand("deposit", "lockdrop_deposit", rest, stdout, stderr)
	case "withdraw":
		return runLockCommand("withdraw", "lockdrop_withdraw", rest, stdout, stderr)
	case "delegate":
		return runLockCommand("delegate", "lockdrop_delegateToAuction", rest, stdout, stderr)
	case "auction-return":
		return runAuctionReturnCommand(rest, stdout, stderr)
	case "claim":
		return runClaimCommand(rest, stdout, stderr)
	case "claim-all":
		return runClaimAllCommand(rest, stdout, stderr)
	case "migrate":
		return runMigrateCommand(rest, stdout, stderr)
	case "update-config":
		return runUpdateConfigCommand(rest, stdout, stderr)
	case "balance":
		return runBalanceCommand(rest, stdout, stderr)
	case "mint":
		return runMintCommand(rest, stdout, stderr)
	case "keygen":
		return runKeygenCommand(rest, stdout, stderr)
	case "token":
		return runTokenCommand(rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`Usage:
  lockdrop-cli [--rpc URL] <command> [flags]

Queries:
  config         Show the lockdrop parameters
  state          Show totals, phase and rounding dust
  phase          Show the current phase
  user           Show a user's lock entries and entitlements
  events         List recent committed events
  balance        Show a token balance

Transactions:
  deposit        Lock deposit tokens for a duration
  withdraw       Withdraw during the withdrawal window
  claim          Claim rewards and pool shares of one entry
  claim-all      Claim every unlocked entry
  delegate       Hand part of an entry's rewards to the auction contract
  auction-return Credit rewards returned by the auction contract (auction)
  migrate        Migrate custody into the pool (owner)
  update-config  Set unset addresses, reward token or incentives (owner)
  mint           Credit tokens on a local network (owner)

Keys:
  keygen         Generate a key and print its address
  token          Sign an RPC bearer token for an address

Transactions send the bearer token from ` + tokenEnv + ` when set.`)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8547"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func doRPCRequest(payload []byte, withAuth bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if withAuth {
		if token := strings.TrimSpace(rpcAuthToken); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	return resp, nil
}

func callRPC(method string, params interface{}, withAuth bool) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	resp, err := doRPCRequest(body, withAuth)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response (HTTP %d): %w", resp.StatusCode, err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}

// invoke performs the call and prints the outcome, returning the exit code.
func invoke(method string, params interface{}, withAuth bool, stdout, stderr io.Writer) int {
	result, rpcErr, err := rpcCall(method, params, withAuth)
	if err != nil {
		fmt.Fprintf(stderr, "RPC call failed: %v\n", err)
		return 1
	}
	if rpcErr != nil {
		fmt.Fprintf(stderr, "RPC error %d: %s\n", rpcErr.Code, rpcErr.Message)
		return 1
	}
	writeRPCResult(stdout, result)
	return 0
}

func writeRPCResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err == nil {
		result = pretty.Bytes()
	}
	if _, err := w.Write(result); err == nil {
		if result[len(result)-1] != '\n' {
			fmt.Fprintln(w)
		}
	}
}
