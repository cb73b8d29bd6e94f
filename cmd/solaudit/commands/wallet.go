package commands

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"solaudit/internal/storage"
	"solaudit/internal/wallet"
)

// targetAddress returns the address argument, or the session wallet.
func targetAddress(s *session, args []string) (solana.PublicKey, error) {
	if len(args) > 0 {
		return solana.PublicKeyFromBase58(args[0])
	}
	if s.provider.Wallet == nil {
		return solana.PublicKey{}, fmt.Errorf("no address given and no wallet configured")
	}
	return s.provider.PublicKey(), nil
}

// maxSOL is the largest amount whose lamport value fits in a uint64.
const maxSOL = float64(math.MaxUint64 / solana.LAMPORTS_PER_SOL)

// parseSOL converts a positive SOL amount to lamports.
func parseSOL(arg string) (uint64, error) {
	sol, err := strconv.ParseFloat(arg, 64)
	if err != nil || math.IsNaN(sol) || sol <= 0 {
		return 0, fmt.Errorf("invalid amount %q", arg)
	}
	if sol > maxSOL {
		return 0, fmt.Errorf("amount %q exceeds %.0f SOL", arg, maxSOL)
	}
	lamports := uint64(sol * float64(solana.LAMPORTS_PER_SOL))
	if lamports == 0 {
		return 0, fmt.Errorf("amount %q is less than one lamport", arg)
	}
	return lamports, nil
}

func airdropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop <sol> [address]",
		Short: "Request SOL from the cluster faucet",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lamports, err := parseSOL(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := openSession(ctx, sessionOptions{readOnly: true})
			if err != nil {
				return err
			}
			defer s.Close()
			to, err := targetAddress(s, args[1:])
			if err != nil {
				return err
			}

			conn := s.provider.Connection
			sig, err := conn.RequestAirdrop(ctx, to, lamports)
			if err != nil {
				return err
			}
			if _, err := conn.ConfirmSignature(ctx, sig, s.provider.Opts.Commitment); err != nil {
				return err
			}
			fmt.Println(sig)
			return nil
		},
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Print the SOL balance of an address or the wallet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, sessionOptions{readOnly: true})
			if err != nil {
				return err
			}
			defer s.Close()
			key, err := targetAddress(s, args)
			if err != nil {
				return err
			}
			lamports, err := s.provider.Connection.Balance(ctx, key)
			if err != nil {
				return err
			}
			fmt.Printf("%s SOL\n", strconv.FormatFloat(float64(lamports)/float64(solana.LAMPORTS_PER_SOL), 'f', -1, 64))
			return nil
		},
	}
}

func keygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a keypair file in the solana-keygen format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := wallet.Generate()
			if err != nil {
				return err
			}
			store, err := storage.NewFileStore(filepath.Dir(out))
			if err != nil {
				return err
			}
			path, err := wallet.Save(cmd.Context(), store, filepath.Base(out), kp)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote new keypair to %s\npubkey: %s\n", path, kp.PublicKey())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "outfile", "o", "id.json", "path of the new keypair file")
	return cmd
}
