// Package workspace reads Anchor.toml manifests: provider settings, program
// addresses per cluster and validator fixtures used by tests.
package workspace

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pelletier/go-toml/v2"
)

var (
	ErrProgramNotFound = errors.New("workspace: program not found")
	ErrUnknownCluster  = errors.New("workspace: unknown cluster")
)

// Workspace is the decoded Anchor.toml plus the directory it was read from.
type Workspace struct {
	Provider Provider                     `toml:"provider"`
	Programs map[string]map[string]string `toml:"programs"`
	Scripts  map[string]string            `toml:"scripts"`
	Test     Test                         `toml:"test"`

	root string
}

type Provider struct {
	Cluster string `toml:"cluster"`
	Wallet  string `toml:"wallet"`
}

type Test struct {
	StartupWait int           `toml:"startup_wait"`
	Validator   TestValidator `toml:"validator"`
}

type TestValidator struct {
	URL     string          `toml:"url"`
	Account []AccountLoader `toml:"account"`
}

// AccountLoader is one `[[test.validator.account]]` entry.
type AccountLoader struct {
	Address  string `toml:"address"`
	Filename string `toml:"filename"`
}

// Load parses the manifest at path.
func Load(path string) (*Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workspace: read %s: %w", path, err)
	}
	ws, err := Parse(data)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		ws.root = filepath.Dir(abs)
	}
	return ws, nil
}

// Parse decodes manifest bytes. Relative paths resolve against the working directory.
func Parse(data []byte) (*Workspace, error) {
	var ws Workspace
	if err := toml.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("workspace: decode Anchor.toml: %w", err)
	}
	if ws.Provider.Cluster == "" {
		ws.Provider.Cluster = "localnet"
	}
	return &ws, nil
}

// Root returns the manifest directory, or "" when parsed from bytes.
func (w *Workspace) Root() string { return w.root }

// Resolve makes p absolute relative to the manifest directory, expanding "~/".
func (w *Workspace) Resolve(p string) string {
	p = ExpandPath(p)
	if p == "" || filepath.IsAbs(p) || w.root == "" {
		return p
	}
	return filepath.Join(w.root, p)
}

// ClusterURL resolves the provider cluster to an RPC endpoint.
func (w *Workspace) ClusterURL() (string, error) {
	return ResolveCluster(w.Provider.Cluster)
}

// WalletPath returns the provider wallet path with "~" expanded.
func (w *Workspace) WalletPath() string {
	return w.Resolve(w.Provider.Wallet)
}

// ProgramID returns the address of program name on cluster. Localnet entries
// act as the fallback, matching how anchor reads the manifest.
func (w *Workspace) ProgramID(cluster, name string) (solana.PublicKey, error) {
	key := clusterKey(cluster)
	for _, c := range []string{key, "localnet"} {
		if addr, ok := w.Programs[c][name]; ok {
			pk, err := solana.PublicKeyFromBase58(addr)
			if err != nil {
				return solana.PublicKey{}, fmt.Errorf("workspace: program %s: %w", name, err)
			}
			return pk, nil
		}
	}
	return solana.PublicKey{}, fmt.Errorf("%w: %s on %s", ErrProgramNotFound, name, key)
}

// ResolveCluster maps a moniker or URL to an RPC endpoint.
func ResolveCluster(name string) (string, error) {
	switch clusterKey(name) {
	case "localnet":
		return rpc.LocalNet_RPC, nil
	case "devnet":
		return rpc.DevNet_RPC, nil
	case "testnet":
		return rpc.TestNet_RPC, nil
	case "mainnet":
		return rpc.MainNetBeta_RPC, nil
	}
	u, err := url.Parse(strings.TrimSpace(name))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownCluster, name)
	}
	return u.String(), nil
}

func clusterKey(name string) string {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "", "localnet", "localhost":
		return "localnet"
	case "mainnet", "mainnet-beta":
		return "mainnet"
	default:
		return n
	}
}

// ExpandPath replaces a leading "~/" with the user's home directory.
func ExpandPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

// AccountFixture is an account dump as written by `solana account --output json`.
type AccountFixture struct {
	Pubkey  solana.PublicKey
	Account FixtureAccount
}

type FixtureAccount struct {
	Lamports   uint64
	Data       []byte
	Owner      solana.PublicKey
	Executable bool
	RentEpoch  uint64
}

type fixtureJSON struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Lamports   uint64   `json:"lamports"`
		Data       []string `json:"data"`
		Owner      string   `json:"owner"`
		Executable bool     `json:"executable"`
		RentEpoch  uint64   `json:"rentEpoch"`
	} `json:"account"`
}

// LoadAccountFixture reads one account dump from disk.
func LoadAccountFixture(path string) (*AccountFixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workspace: read fixture %s: %w", path, err)
	}
	return ParseAccountFixture(raw)
}

// ParseAccountFixture decodes one account dump.
func ParseAccountFixture(raw []byte) (*AccountFixture, error) {
	var f fixtureJSON
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("workspace: decode fixture: %w", err)
	}
	pubkey, err := solana.PublicKeyFromBase58(f.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("workspace: fixture pubkey: %w", err)
	}
	owner, err := solana.PublicKeyFromBase58(f.Account.Owner)
	if err != nil {
		return nil, fmt.Errorf("workspace: fixture owner: %w", err)
	}
	var data []byte
	if len(f.Account.Data) > 0 && f.Account.Data[0] != "" {
		if len(f.Account.Data) > 1 && f.Account.Data[1] != "base64" {
			return nil, fmt.Errorf("workspace: unsupported fixture encoding %q", f.Account.Data[1])
		}
		data, err = base64.StdEncoding.DecodeString(f.Account.Data[0])
		if err != nil {
			return nil, fmt.Errorf("workspace: fixture data: %w", err)
		}
	}
	return &AccountFixture{
		Pubkey: pubkey,
		Account: FixtureAccount{
			Lamports:   f.Account.Lamports,
			Data:       data,
			Owner:      owner,
			Executable: f.Account.Executable,
			RentEpoch:  f.Account.RentEpoch,
		},
	}, nil
}

// Fixtures loads every `[[test.validator.account]]` entry. The fixture pubkey
// is overridden by the manifest address when both are present.
func (w *Workspace) Fixtures() ([]AccountFixture, error) {
	out := make([]AccountFixture, 0, len(w.Test.Validator.Account))
	for _, entry := range w.Test.Validator.Account {
		fx, err := LoadAccountFixture(w.Resolve(entry.Filename))
		if err != nil {
			return nil, err
		}
		if entry.Address != "" {
			addr, err := solana.PublicKeyFromBase58(entry.Address)
			if err != nil {
				return nil, fmt.Errorf("workspace: fixture address %q: %w", entry.Address, err)
			}
			fx.Pubkey = addr
		}
		out = append(out, *fx)
	}
	return out, nil
}
