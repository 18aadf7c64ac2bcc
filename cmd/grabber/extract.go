package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgard/checkgrabber/internal/checks"
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [text]",
		Short: "Print the voucher codes found in text, or in stdin when no text is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(raw)
			}

			for _, code := range checks.ExtractText(text) {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), code.String()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
