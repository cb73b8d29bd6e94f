package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"solaudit/internal/programs/solanaaudit"
)

func initializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initialize",
		Short: "Invoke the initialize instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			sig, err := s.track(ctx, "initialize", nil, s.client.Initialize)
			if err != nil {
				return err
			}
			fmt.Println(sig)
			return nil
		},
	}
}

func slashCmd() *cobra.Command {
	var (
		vault, stakeMint, stakePool string
		amount                      uint64
		router, locked              uint8
	)
	cmd := &cobra.Command{
		Use:   "slash",
		Short: "Lock a reward pool of a stake pool through the slashing instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accts := solanaaudit.SlashingAccounts{}
			for _, f := range []struct {
				name string
				raw  string
				dst  *solana.PublicKey
			}{
				{"vault", vault, &accts.Vault},
				{"stake-mint", stakeMint, &accts.StakeMint},
				{"stake-pool", stakePool, &accts.StakePool},
			} {
				pk, err := solana.PublicKeyFromBase58(f.raw)
				if err != nil {
					return fmt.Errorf("--%s: %w", f.name, err)
				}
				*f.dst = pk
			}
			slashArgs := solanaaudit.SlashingArgs{Amount: amount, Router: router, IsLocked: locked}

			ctx := cmd.Context()
			s, err := openSession(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			journal := map[string]any{
				"amount":     amount,
				"router":     router,
				"is_locked":  locked,
				"stake_pool": accts.StakePool.String(),
				"vault":      accts.Vault.String(),
			}
			sig, err := s.track(ctx, "slashing", journal, func(ctx context.Context) (solana.Signature, error) {
				return s.client.Slashing(ctx, accts, slashArgs)
			})
			if err != nil {
				return err
			}
			fmt.Println(sig)
			return nil
		},
	}
	cmd.Flags().StringVar(&vault, "vault", "", "stake pool vault token account")
	cmd.Flags().StringVar(&stakeMint, "stake-mint", "", "stake mint")
	cmd.Flags().StringVar(&stakePool, "stake-pool", "", "stake pool account")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "token amount moved by the pool")
	cmd.Flags().Uint8Var(&router, "router", 0, "reward pool index")
	cmd.Flags().Uint8Var(&locked, "locked", 1, "value written to is_locked")
	for _, name := range []string{"vault", "stake-mint", "stake-pool"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func stakePoolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stake-pool <address>",
		Short: "Fetch and print a stake pool account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, sessionOptions{readOnly: true})
			if err != nil {
				return err
			}
			defer s.Close()

			pool, err := s.client.FetchStakePool(ctx, address)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(pool)
		},
	}
}
