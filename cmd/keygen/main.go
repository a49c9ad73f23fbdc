package main

import (
	"fmt"
	"os"

	"github.com/relayonprem/control-plane/internal/crypto"
)

func main() {
	keys, _, err := crypto.LoadRelayKeys("", "")
	if err != nil {
		fmt.Printf("Failed to generate key: %v\n", err)
		os.Exit(1)
	}

	privPEM, err := crypto.MarshalPrivateKeyPEM(keys.Private)
	if err != nil {
		fmt.Printf("Failed to marshal key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("--- COPY BELOW TO .env.local ---")
	fmt.Printf("RELAY_PRIVATE_KEY=\"%s\"\n", privPEM)
	fmt.Printf("RELAY_KEY_ID=%s\n", keys.KeyID)
	fmt.Println("--------------------------------")
	fmt.Printf("Public key (base64): %s\n", keys.PublicKeyBase64())
}
