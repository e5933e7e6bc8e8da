package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/statement-extractor/internal/common"
)

var manualFlags struct {
	out    string
	format string
}

var manualCmd = &cobra.Command{
	Use:   "manual <rows.csv|->",
	Short: "Convert pasted CSV transactions (header row required)",
	Long: `manual maps CSV columns onto transaction fields by header name, e.g.

  Date,Narration,Ref No,Amount,Balance
  15/04/2024,POS PURCHASE,FT2404,500.00,86040.65

Unknown columns are kept as extra fields. Pass - to read stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(manualFlags.format, manualFlags.out)
		if err != nil {
			return err
		}
		var data []byte
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		env, err := newEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.close()

		res, err := env.processor.ProcessManual(cmd.Context(), args[0], data)
		if err != nil {
			return errors.New(common.UserMessage(err))
		}
		return writeOutput(cmd.OutOrStdout(), manualFlags.out, format, res.Records, env.logger)
	},
}

func init() {
	manualCmd.Flags().StringVarP(&manualFlags.out, "output", "o", "", "output file; stdout when empty")
	manualCmd.Flags().StringVar(&manualFlags.format, "format", "", "xlsx, csv or json; inferred from --output, csv otherwise")
}
