package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newDecodeCmd(app *App) *cobra.Command {
	var (
		fileType  string
		addresses AddressList
		pec       bool
		summary   bool
	)

	cmd := &cobra.Command{
		Use:   "decode [flags] <scl.bin> <sda.bin> | <capture.csv> <scl column> <sda column>",
		Short: "Decode I2C transactions from a capture",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := ParseSource(fileType, args)
			if err != nil {
				return err
			}

			s, err := Open(cmd.Context(), src, app.cfg.Bus, app.log)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary && app.cfg.Output.Format == "plain" {
				for _, dev := range s.Transactions.SortedAddresses() {
					fmt.Fprintf(out, "  Device 0x%02X: %d writes, %d reads\n", dev.Address, dev.WriteCount, dev.ReadCount)
				}
				fmt.Fprintln(out)
			}

			encoder, err := NewEncoder(app.cfg.Output.Format, out, pec)
			if err != nil {
				return err
			}

			selected := s.Transactions.Filter(NewFilterChain(app.cfg.Filter))
			app.log.Debugf("%d of %d transactions selected", selected.Len(), s.Transactions.Len())

			for _, tr := range selected.All() {
				if err := encoder.Encode(tr); err != nil {
					return errors.Wrap(err, "encode transaction")
				}
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&fileType, "filetype", FileTypeBinary, "capture file type: saleae_bin or saleae_csv")
	flags.String("format", "", "transaction output format: plain, csv or json")
	flags.Var(&addresses, "address", "display only transactions to a comma-separated list of hex addresses")
	flags.String("direction", "", "display only transactions of one direction: any, read or write")
	flags.Bool("complete", false, "display only complete transactions")
	flags.BoolVar(&pec, "pec", false, "verify the last data byte as an SMBus packet error code (plain format)")
	flags.BoolVar(&summary, "summary", true, "list the devices seen before the transactions (plain format)")

	app.bind("output.format", cmd, "format", false)
	app.bind("filter.addresses", cmd, "address", false)
	app.bind("filter.direction", cmd, "direction", false)
	app.bind("filter.complete", cmd, "complete", false)

	return cmd
}
