package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"donation-gate/internal/config"
	"donation-gate/internal/domain"
)

func ledgerCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List every donation intent, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			intents, err := store.List(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(intents)
			}
			return printLedger(os.Stdout, intents)
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printLedger(out io.Writer, intents []domain.Intent) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAYMENT ID\tSTATUS\tAMOUNT\tTOKEN\tCREATED")
	for _, i := range intents {
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n",
			dash(i.ExternalPaymentID),
			i.Status,
			i.Currency,
			i.Amount.StringFixed(2),
			dash(i.AccessToken),
			i.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	return w.Flush()
}
