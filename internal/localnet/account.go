package localnet

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

var NativeLoaderID = solana.MustPublicKeyFromBase58("NativeLoader1111111111111111111111111111111")

// Account is the state the bank keeps per address.
type Account struct {
	Lamports   uint64
	Owner      solana.PublicKey
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.Data = append([]byte(nil), a.Data...)
	return &out
}

func (a *Account) equal(b *Account) bool {
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}

// SPL token account and mint layouts.
const (
	TokenAccountSize = 165
	MintSize         = 82
)

var errTokenLayout = errors.New("localnet: invalid token account layout")

// NewTokenAccountData encodes an initialized token account.
func NewTokenAccountData(mint, owner solana.PublicKey, amount uint64) []byte {
	data, err := encodeTokenAccount(&token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.Initialized,
	})
	if err != nil {
		panic(err)
	}
	return data
}

func encodeTokenAccount(acct *token.Account) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, TokenAccountSize))
	if err := acct.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTokenAccount(data []byte) (*token.Account, error) {
	if len(data) != TokenAccountSize {
		return nil, errTokenLayout
	}
	var acct token.Account
	if err := acct.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", errTokenLayout, err)
	}
	if acct.State == token.Uninitialized {
		return nil, errTokenLayout
	}
	return &acct, nil
}

// TokenAmount reads the balance of an encoded token account.
func TokenAmount(data []byte) (uint64, error) {
	acct, err := decodeTokenAccount(data)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

// NewMintData encodes an initialized mint with an optional mint authority.
func NewMintData(authority *solana.PublicKey, supply uint64, decimals uint8) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, MintSize))
	mint := token.Mint{
		MintAuthority: authority,
		Supply:        supply,
		Decimals:      decimals,
		IsInitialized: true,
	}
	if err := mint.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func decodeMint(data []byte) (*token.Mint, error) {
	if len(data) != MintSize {
		return nil, errTokenLayout
	}
	var mint token.Mint
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", errTokenLayout, err)
	}
	if !mint.IsInitialized {
		return nil, errTokenLayout
	}
	return &mint, nil
}
