// Package report implements the report export command.
package report

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AyanAhmedKhan/endoscopy-go/cmd/analyze"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/diagnosis"
)

// Command creates the report command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		model  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "report [image file]",
		Short: "Analyze an image and export a PDF report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(settings, args[0], model, output)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Classifier variant (ensemble, deit3, vit)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path for the PDF (defaults to the configured filename)")
	return cmd
}

func runReport(settings *conf.Settings, path, model, output string) error {
	session, store, err := analyze.NewSession(settings)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	ctx := context.Background()
	session.Tracker.Probe(ctx)

	if model != "" {
		if err := session.Selector.Select(diagnosis.ModelID(model)); err != nil {
			return err
		}
	}
	if err := session.SetFile(path); err != nil {
		return err
	}

	result, err := session.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Diagnosis: %s (%.1f%%)\n", result.PredictedClass, result.Confidence)

	doc, err := session.GenerateReport(ctx)
	if err != nil {
		return err
	}

	if output == "" {
		output = doc.Filename
	}
	if err := os.WriteFile(output, doc.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Printf("Report written to %s (%d bytes)\n", output, len(doc.Data))
	return nil
}
