// Package wallet loads and stores ed25519 keypairs in the solana-keygen file
// format: a JSON array of the 64 secret key bytes.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"

	"solaudit/internal/storage"
)

var (
	ErrMissingWallet  = errors.New("wallet: keypair path is required")
	ErrInvalidKeypair = errors.New("wallet: invalid keypair")
)

// Keypair is a signing key and its public address.
type Keypair struct {
	PrivateKey solana.PrivateKey
}

// PublicKey returns the address of the keypair.
func (k *Keypair) PublicKey() solana.PublicKey {
	return k.PrivateKey.PublicKey()
}

// Signer returns a lookup usable with solana.Transaction.Sign.
func (k *Keypair) Signer() func(solana.PublicKey) *solana.PrivateKey {
	pub := k.PublicKey()
	return func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &k.PrivateKey
		}
		return nil
	}
}

// Generate creates a fresh random keypair.
func Generate() (*Keypair, error) {
	pk, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("wallet: generate: %w", err)
	}
	return &Keypair{PrivateKey: pk}, nil
}

// MustGenerate is Generate for tests and fixtures.
func MustGenerate() *Keypair {
	kp, err := Generate()
	if err != nil {
		panic(err)
	}
	return kp
}

// Load reads a solana-keygen keypair file.
func Load(path string) (*Keypair, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrMissingWallet
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: read %s: %w", path, err)
	}
	return Decode(raw)
}

// Decode parses keypair file contents.
func Decode(raw []byte) (*Keypair, error) {
	var values []int
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	if len(values) != 64 {
		return nil, fmt.Errorf("%w: expected 64 bytes, got %d", ErrInvalidKeypair, len(values))
	}
	secret := make([]byte, 64)
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidKeypair, i)
		}
		secret[i] = byte(v)
	}
	pk := solana.PrivateKey(secret)
	if _, err := solana.ValidatePrivateKey(pk); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	return &Keypair{PrivateKey: pk}, nil
}

// Encode renders the keypair in solana-keygen format.
func (k *Keypair) Encode() ([]byte, error) {
	values := make([]int, len(k.PrivateKey))
	for i, b := range k.PrivateKey {
		values[i] = int(b)
	}
	return json.Marshal(values)
}

// Save writes the keypair under key with owner-only permissions. Existing
// files are never overwritten.
func Save(ctx context.Context, store *storage.FileStore, key string, kp *Keypair) (string, error) {
	data, err := kp.Encode()
	if err != nil {
		return "", fmt.Errorf("wallet: encode: %w", err)
	}
	path, err := store.WriteSecret(ctx, key, data)
	if err != nil {
		return "", err
	}
	return store.Path(path)
}
