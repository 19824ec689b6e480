// genkey generates secrets for a Minima deployment.
//
// Usage (run from the repo root):
//
//	go run scripts/genkey/main.go
//
// Prints a vault master key and a JWT shared secret, ready to paste into
// .env as MINIMA_VAULT_MASTER_KEY and MINIMA_AUTH_JWT_SECRET.
//
// The vault master key encrypts every stored optimizer credential. Rotating
// it invalidates all existing credentials — users would have to re-add their
// keys — so generate it once and keep it.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

func main() {
	fmt.Printf("MINIMA_VAULT_MASTER_KEY=%s\n", randomHex(32))
	fmt.Printf("MINIMA_AUTH_JWT_SECRET=%s\n", randomHex(32))
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		fmt.Fprintf(os.Stderr, "error: generate secret: %v\n", err)
		os.Exit(1)
	}
	return hex.EncodeToString(buf)
}
