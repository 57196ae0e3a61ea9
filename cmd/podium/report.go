package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:     "report",
	Short:   "Download the contract register as an XLSX spreadsheet",
	GroupID: "contracts",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		req := listRequestFromFlags(cmd)
		req.Limit, req.Offset = 0, 0

		data, err := podiumClient.ContractReport(context.Background(), req)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", out, len(data))
		return nil
	},
}

func init() {
	addListFlags(reportCmd)
	reportCmd.Flags().String("out", "contracts.xlsx", "output file")
}
