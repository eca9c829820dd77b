// Command keygen seals a tenant provider credential for storage. The
// output is the base64 blob that goes into a tenant's provider list; the
// pipeline decrypts it with the same key at request time.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/relayforge/relayforge/internal/domain"
	"github.com/relayforge/relayforge/internal/tenant"
)

func main() {
	newKey := flag.Bool("new-key", false, "generate a fresh 32-byte encryption key and exit")
	keyHex := flag.String("key", os.Getenv("RELAYFORGE_TENANT__ENCRYPTION_KEY_HEX"), "hex-encoded encryption key")
	apiKey := flag.String("api-key", "", "provider API key to seal")
	baseURL := flag.String("base-url", "", "optional endpoint override")
	flag.Parse()

	if *newKey {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			fatalf("generate key: %v", err)
		}
		fmt.Println(hex.EncodeToString(key))
		return
	}

	if *keyHex == "" || *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Usage: keygen -key <hex> -api-key <key> [-base-url <url>]")
		fmt.Fprintln(os.Stderr, "       keygen -new-key")
		os.Exit(1)
	}

	key, err := hex.DecodeString(*keyHex)
	if err != nil {
		fatalf("decode key: %v", err)
	}
	cipher, err := tenant.NewCipher(key)
	if err != nil {
		fatalf("create cipher: %v", err)
	}

	sealed, err := cipher.Seal(domain.Credential{
		APIKey:  *apiKey,
		BaseURL: *baseURL,
	})
	if err != nil {
		fatalf("seal credential: %v", err)
	}
	fmt.Println(sealed)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
