// Package models implements the capability listing command.
package models

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/diagnosis"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/httpclient"
)

// Command creates the models command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List classifier variants and their availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listModels(settings)
		},
	}
}

func listModels(settings *conf.Settings) error {
	tracker := diagnosis.NewAvailabilityTracker(settings, httpclient.New(nil))
	avail := tracker.Refresh(context.Background())

	fmt.Printf("Inference service: %s\n\n", settings.Service.BaseURL)
	printVariant(diagnosis.ModelEnsemble, "DeiT3 + ViT ensemble", true)
	printVariant(diagnosis.ModelDeiT3, "DeiT3 classifier", avail.DeiT3)
	printVariant(diagnosis.ModelViT, "ViT classifier", avail.ViT)
	return nil
}

func printVariant(id diagnosis.ModelID, description string, available bool) {
	status := "unavailable"
	if available {
		status = "available"
	}
	fmt.Printf("  %-10s %-22s %s\n", id, description, status)
}
