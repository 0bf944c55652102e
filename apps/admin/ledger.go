package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unistock/stockroom/core/ledger"
)

var errBrokenChains = errors.New("broken ledger chains found")

func (cli *commandLine) verifyLedgerCmd() *cobra.Command {
	var prefix, chain string
	cmd := &cobra.Command{
		Use:   "verify-ledger",
		Short: "Re-compute the ledger hashes and report broken chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var reports []ledger.Report
			if chain != "" {
				rep, err := cli.ledgerSvc.Verify(cmd.Context(), chain)
				if err != nil {
					return errors.Wrapf(err, "verifying chain %q", chain)
				}
				reports = append(reports, rep)
			} else {
				var err error
				if reports, err = cli.ledgerSvc.VerifyAll(cmd.Context(), prefix); err != nil {
					return errors.Wrap(err, "verifying ledger")
				}
			}

			w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "CHAIN\tBLOCKS\tVALID\tISSUES")
			broken := 0
			for _, rep := range reports {
				_, _ = fmt.Fprintf(w, "%s\t%d\t%t\t%d\n", rep.ChainKey, rep.Length, rep.Valid, len(rep.Issues))
				if rep.Valid {
					continue
				}
				broken++
				for _, issue := range rep.Issues {
					cli.logger.Warn("broken block",
						zap.String("chain", rep.ChainKey), zap.Int64("index", issue.Index), zap.String("reason", issue.Reason))
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}

			cli.printf("%d chains verified, %d broken\n", len(reports), broken)
			if broken > 0 {
				return errBrokenChains
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "only verify this chain")
	cmd.Flags().StringVar(&prefix, "prefix", "", `only verify the chains whose key starts with prefix (e.g. "stock_in:")`)
	return cmd
}
