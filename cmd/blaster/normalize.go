package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wa-blaster/internal/helper"
	"wa-blaster/internal/model"

	"github.com/spf13/cobra"
)

func newNormalizeCmd(a *app) *cobra.Command {
	var (
		column string
		out    string
		sample int
	)

	cmd := &cobra.Command{
		Use:   "normalize <contacts.csv|contacts.xlsx>",
		Short: "Normalize the phone column of a contact file",
		Long: `Strips non-digits, applies the country prefix rules, drops invalid and duplicate
rows, then prints a summary. With --out the cleaned table is written as csv or xlsx
depending on the extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := readContacts(args[0])
			if err != nil {
				return err
			}
			if table.Column(column) < 0 {
				return fmt.Errorf("column %q not found, available: %s", column, strings.Join(table.Columns, ", "))
			}

			numbers, stats := helper.NormalizeNumbers(table, column)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "input:      %d\n", stats.Input)
			fmt.Fprintf(w, "empty:      %d\n", stats.DroppedEmpty)
			fmt.Fprintf(w, "invalid:    %d\n", stats.DroppedInvalid)
			fmt.Fprintf(w, "duplicates: %d\n", stats.DroppedDuplicate)
			fmt.Fprintf(w, "kept:       %d\n", stats.Kept)
			if s := model.SampleNumbers(numbers, sample); len(s) > 0 {
				fmt.Fprintf(w, "sample:     %s\n", strings.Join(s, ", "))
			}

			if out == "" {
				return nil
			}
			if err := writeContacts(out, table); err != nil {
				return err
			}
			a.log.Info().Str("file", out).Int("rows", table.Len()).Msg("normalized contacts written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&column, "column", "c", "phone", "header of the phone number column")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the normalized table to this .csv or .xlsx file")
	cmd.Flags().IntVar(&sample, "sample", 5, "how many normalized numbers to print")
	return cmd
}

func readContacts(path string) (*model.ContactTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return model.ReadContactsFile(path, f)
}

func writeContacts(path string, table *model.ContactTable) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		err = model.WriteContactsXLSX(f, table)
	default:
		err = model.WriteContactsCSV(f, table)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
