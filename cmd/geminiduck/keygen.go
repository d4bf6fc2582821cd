package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// keygenCmd mints a service key. The plain key goes to stdout exactly once;
// only the hash belongs in SERVICE_API_KEY_HASH.
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a service key and its bcrypt hash",
	RunE: func(cmd *cobra.Command, args []string) error {
		const keyLen = 32
		b := make([]byte, keyLen)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		plainKey := "sk_" + hex.EncodeToString(b)

		hash, err := bcrypt.GenerateFromPassword([]byte(plainKey), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash key: %w", err)
		}

		fmt.Println(plainKey)
		printStatus("SERVICE_API_KEY_HASH", "%s", string(hash))
		return nil
	},
}
