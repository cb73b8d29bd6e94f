package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"solaudit/internal/infra"
)

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent program invocations from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DatabaseURL == "" {
				return infra.ErrDatabaseDisabled
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, sessionOptions{readOnly: true})
			if err != nil {
				return err
			}
			defer s.Close()

			items, err := s.ledger.Recent(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tINSTRUCTION\tSTATUS\tSLOT\tSIGNATURE\tERROR")
			for _, inv := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					inv.CreatedAt.Local().Format(time.DateTime),
					inv.Instruction, inv.Status, inv.Slot, inv.Signature, inv.ErrorMessage)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	return cmd
}
