package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/kamranshah125/turum/internal/api/middleware"
)

// Prints ADMIN_API_KEY_HASH for the /debug routes. Without --api-key a random key is generated.
func main() {
	apiKeyFlag := flag.String("api-key", "", "admin API key to hash (save it; it cannot be retrieved later)")
	flag.Parse()

	// Trim so the stored hash matches what the server receives (the middleware trims the key)
	apiKey := strings.TrimSpace(*apiKeyFlag)
	if apiKey == "" {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to generate key: %v\n", err)
			os.Exit(1)
		}
		apiKey = hex.EncodeToString(buf)
		fmt.Printf("Generated API key: %s\n", apiKey)
	}

	hash, err := middleware.HashAPIKey(apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to hash key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ADMIN_API_KEY_HASH=%s\n", hash)
}
