package anchor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// IDL is the legacy Anchor JSON interface description emitted by `anchor build`.
type IDL struct {
	Version      string           `json:"version"`
	Name         string           `json:"name"`
	Instructions []IDLInstruction `json:"instructions"`
	Accounts     []IDLTypeDef     `json:"accounts"`
	Types        []IDLTypeDef     `json:"types"`
	Errors       []IDLErrorCode   `json:"errors"`
	Metadata     IDLMetadata      `json:"metadata"`
}

type IDLMetadata struct {
	Address string `json:"address"`
}

type IDLInstruction struct {
	Name     string           `json:"name"`
	Docs     []string         `json:"docs,omitempty"`
	Accounts []IDLAccountItem `json:"accounts"`
	Args     []IDLField       `json:"args"`
}

type IDLAccountItem struct {
	Name     string   `json:"name"`
	IsMut    bool     `json:"isMut"`
	IsSigner bool     `json:"isSigner"`
	Docs     []string `json:"docs,omitempty"`
}

type IDLField struct {
	Name string  `json:"name"`
	Type IDLType `json:"type"`
}

// IDLType is either a primitive name ("u64", "publicKey") or a composite
// definition kept as raw JSON.
type IDLType struct {
	Primitive string
	Raw       json.RawMessage
}

func (t *IDLType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		t.Primitive = name
		return nil
	}
	t.Raw = append(t.Raw[:0], data...)
	return nil
}

func (t IDLType) MarshalJSON() ([]byte, error) {
	if t.Primitive != "" {
		return json.Marshal(t.Primitive)
	}
	if len(t.Raw) == 0 {
		return []byte("null"), nil
	}
	return t.Raw, nil
}

func (t IDLType) String() string {
	if t.Primitive != "" {
		return t.Primitive
	}
	return string(t.Raw)
}

type IDLTypeDef struct {
	Name string `json:"name"`
	Type struct {
		Kind   string     `json:"kind"`
		Fields []IDLField `json:"fields"`
	} `json:"type"`
}

type IDLErrorCode struct {
	Code uint32 `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// ParseIDL decodes an IDL document.
func ParseIDL(data []byte) (*IDL, error) {
	var idl IDL
	if err := json.Unmarshal(data, &idl); err != nil {
		return nil, fmt.Errorf("anchor: decode idl: %w", err)
	}
	if idl.Name == "" {
		return nil, fmt.Errorf("anchor: decode idl: missing program name")
	}
	return &idl, nil
}

// LoadIDL reads an IDL file such as target/idl/<program>.json.
func LoadIDL(path string) (*IDL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("anchor: read idl %s: %w", path, err)
	}
	return ParseIDL(data)
}

// Address returns metadata.address, or the zero key when absent.
func (idl *IDL) Address() (solana.PublicKey, error) {
	if strings.TrimSpace(idl.Metadata.Address) == "" {
		return solana.PublicKey{}, nil
	}
	pk, err := solana.PublicKeyFromBase58(idl.Metadata.Address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("anchor: idl address: %w", err)
	}
	return pk, nil
}

// Instruction finds an instruction by name. Camel and snake case spellings
// are equivalent.
func (idl *IDL) Instruction(name string) (*IDLInstruction, bool) {
	key := normalizeName(name)
	for i := range idl.Instructions {
		if normalizeName(idl.Instructions[i].Name) == key {
			return &idl.Instructions[i], true
		}
	}
	return nil, false
}

// Account finds an account type definition by name.
func (idl *IDL) Account(name string) (*IDLTypeDef, bool) {
	key := normalizeName(name)
	for i := range idl.Accounts {
		if normalizeName(idl.Accounts[i].Name) == key {
			return &idl.Accounts[i], true
		}
	}
	return nil, false
}

// Error looks up a program error by code.
func (idl *IDL) Error(code uint32) (IDLErrorCode, bool) {
	for _, e := range idl.Errors {
		if e.Code == code {
			return e, true
		}
	}
	return IDLErrorCode{}, false
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", ""))
}
