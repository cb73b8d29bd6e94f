package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"solaudit/internal/anchor"
	"solaudit/internal/app"
	"solaudit/internal/wallet"
)

// testCmd runs the "Is initialized!" smoke test, optionally against an
// in-process validator.
func testCmd() *cobra.Command {
	var startValidator bool
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the solana-audit smoke test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			opts := sessionOptions{}
			if startValidator {
				endpoint, stop, err := startLocalnet(ctx)
				if err != nil {
					return err
				}
				defer stop()
				opts.endpoint = endpoint

				kp, err := loadWallet()
				if errors.Is(err, anchor.ErrWalletEnvNotSet) {
					kp, err = wallet.Generate()
				}
				if err != nil {
					return err
				}
				if err := fund(ctx, endpoint, kp); err != nil {
					return err
				}
				opts.keypair = kp
			}

			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Println("solana-audit")
			sig, err := s.track(ctx, "initialize", nil, s.client.Initialize)
			if err != nil {
				fmt.Println("  ✗ Is initialized!")
				return err
			}
			fmt.Printf("Your transaction signature %s\n", sig)
			fmt.Println("  ✔ Is initialized!")
			return nil
		},
	}
	cmd.Flags().BoolVar(&startValidator, "start-validator", false, "run an in-process localnet for the test")
	return cmd
}

// startLocalnet serves a validator on a free loopback port and waits until it
// answers getHealth.
func startLocalnet(ctx context.Context) (string, func(), error) {
	l, err := app.NewLocalnet(cfg, ws, logger)
	if err != nil {
		return "", nil, err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- l.Serve(runCtx, ln) }()
	stop := func() {
		cancel()
		if err := <-done; err != nil {
			logger.Error().Err(err).Msg("localnet: stopped with error")
		}
	}

	endpoint := "http://" + ln.Addr().String()
	waitCtx, waitCancel := context.WithTimeout(ctx, 10*time.Second)
	defer waitCancel()
	if err := newConnection(endpoint).WaitForHealthy(waitCtx); err != nil {
		stop()
		return "", nil, err
	}
	return endpoint, stop, nil
}

func fund(ctx context.Context, endpoint string, kp *wallet.Keypair) error {
	conn := newConnection(endpoint)
	sig, err := conn.RequestAirdrop(ctx, kp.PublicKey(), 2*solana.LAMPORTS_PER_SOL)
	if err != nil {
		return fmt.Errorf("fund test wallet: %w", err)
	}
	_, err = conn.ConfirmSignature(ctx, sig, "")
	return err
}
