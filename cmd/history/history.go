// Package history implements the diagnosis history listing command.
package history

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/datastore"
)

// Command creates the history command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		limit  int
		search string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent diagnoses from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listHistory(settings, limit, search)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records to list")
	cmd.Flags().StringVar(&search, "search", "", "Filter by predicted class or filename")
	return cmd
}

func listHistory(settings *conf.Settings, limit int, search string) error {
	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("history persistence is disabled, enable output.sqlite in the configuration")
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var (
		records []datastore.Record
		err     error
	)
	if search != "" {
		records, err = store.SearchRecords(search, false, limit, 0)
	} else {
		records, err = store.GetLastRecords(limit)
	}
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No diagnoses recorded.")
		return nil
	}

	for _, r := range records {
		fmt.Printf("%s %s  %-24s %5.1f%%  %-8s %s\n",
			r.Date, r.Time, r.PredictedClass, r.Confidence, r.Model, r.Filename)
	}
	return nil
}
