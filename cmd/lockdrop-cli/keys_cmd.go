package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"lockdrop/crypto"
	"lockdrop/rpc/middleware"
)

const defaultSecretEnv = "LOCKDROP_RPC_SECRET"

// readSecret resolves the HMAC secret; tests swap it out.
var readSecret = resolveSecret

// resolveSecret prefers the environment variable and falls back to a hidden
// prompt on stderr when stdin is a terminal.
func resolveSecret(envVar string, stderr io.Writer) (string, error) {
	if value, ok := os.LookupEnv(envVar); ok {
		if strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("%s is set but empty", envVar)
		}
		return value, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s is not set", envVar)
	}
	fmt.Fprint(stderr, "Enter RPC signing secret: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", errors.New("signing secret cannot be empty")
	}
	return string(raw), nil
}

func runKeygenCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	var out string
	fs.StringVar(&out, "out", "", "write the hex private key to this file (0600)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err.Error())
	}
	if out != "" {
		if _, err := os.Stat(out); err == nil {
			return printError(stderr, fmt.Sprintf("%s already exists", out))
		}
		if err := os.WriteFile(out, []byte(hex.EncodeToString(key.Bytes())), 0o600); err != nil {
			return printError(stderr, err.Error())
		}
	}
	fmt.Fprintln(stdout, key.Address().String())
	return 0
}

// runTokenCommand signs a bearer token whose subject is the account the RPC
// server should act for. The signing secret is the server's rpc_auth secret.
func runTokenCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr)
	var (
		subject   string
		keyFile   string
		secretEnv string
		issuer    string
		audience  string
		ttl       time.Duration
	)
	fs.StringVar(&subject, "subject", "", "account address the token authorises")
	fs.StringVar(&keyFile, "key", "", "derive the subject from a hex private key file")
	fs.StringVar(&secretEnv, "secret-env", defaultSecretEnv, "environment variable holding the HMAC secret")
	fs.StringVar(&issuer, "issuer", "", "token issuer")
	fs.StringVar(&audience, "audience", "", "token audience")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if keyFile != "" {
		raw, err := os.ReadFile(keyFile)
		if err != nil {
			return printError(stderr, err.Error())
		}
		keyBytes, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
		if err != nil {
			return printError(stderr, "key file must contain a hex private key")
		}
		key, err := crypto.PrivateKeyFromBytes(keyBytes)
		if err != nil {
			return printError(stderr, err.Error())
		}
		subject = key.Address().String()
	}
	normalized, err := normalizeAddress("--subject", subject, true)
	if err != nil {
		return printError(stderr, err.Error())
	}
	secret, err := readSecret(secretEnv, stderr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	token, err := middleware.IssueToken(secret, issuer, audience, normalized, nil, ttl)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, token)
	return 0
}
