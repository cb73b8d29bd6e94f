package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"solaudit/internal/infra"
	"solaudit/internal/workspace"
)

var (
	clusterFlag   string
	walletFlag    string
	workspaceFlag string

	cfg    *infra.Config
	logger infra.Logger
	ws     *workspace.Workspace
)

func Execute() error {
	root := &cobra.Command{
		Use:           "solaudit",
		Short:         "Client and local validator for the solana-audit program",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			var err error
			if cfg, err = infra.LoadConfig(); err != nil {
				return err
			}
			logger = infra.NewLogger(cfg.AppEnv)

			path := workspaceFlag
			if path == "" {
				path = cfg.WorkspacePath
			}
			ws, err = workspace.Load(path)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					return err
				}
				ws = nil
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&clusterFlag, "provider.cluster", "", "cluster moniker or RPC URL (default ANCHOR_PROVIDER_URL, then Anchor.toml)")
	root.PersistentFlags().StringVar(&walletFlag, "provider.wallet", "", "keypair file (default ANCHOR_WALLET, then Anchor.toml)")
	root.PersistentFlags().StringVar(&workspaceFlag, "workspace", "", "path to Anchor.toml (default ANCHOR_WORKSPACE)")

	root.AddCommand(
		testCmd(),
		initializeCmd(),
		slashCmd(),
		stakePoolCmd(),
		airdropCmd(),
		balanceCmd(),
		keygenCmd(),
		historyCmd(),
	)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return root.ExecuteContext(ctx)
}
