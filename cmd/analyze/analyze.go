// Package analyze implements the one-shot image analysis command.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/datastore"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/diagnosis"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/httpclient"
)

type options struct {
	model         string
	brightness    float64
	contrast      float64
	rotation      float64
	flipH         bool
	flipV         bool
	enhance       bool
	sharpen       bool
	multilayer    bool
	attention     bool
	mask          bool
	noUncertainty bool
	asJSON        bool
}

// Command creates the analyze command.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "analyze [image file]",
		Short: "Analyze an endoscopy image",
		Long:  "Submit an endoscopy image to the inference service and print the diagnosis.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(settings, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", viper.GetString("model"), "Classifier variant (ensemble, deit3, vit)")
	cmd.Flags().Float64Var(&opts.brightness, "brightness", 1.0, "Brightness multiplier (0.5-2.0)")
	cmd.Flags().Float64Var(&opts.contrast, "contrast", 1.0, "Contrast multiplier (0.5-2.0)")
	cmd.Flags().Float64Var(&opts.rotation, "rotation", 0, "Rotation in degrees (-180 to 180, step 15)")
	cmd.Flags().BoolVar(&opts.flipH, "flip-h", false, "Flip horizontally")
	cmd.Flags().BoolVar(&opts.flipV, "flip-v", false, "Flip vertically")
	cmd.Flags().BoolVar(&opts.enhance, "enhance", false, "Request CLAHE enhancement")
	cmd.Flags().BoolVar(&opts.sharpen, "sharpen", false, "Request sharpening")
	cmd.Flags().BoolVar(&opts.multilayer, "multilayer", false, "Request multi-layer Grad-CAM artifacts")
	cmd.Flags().BoolVar(&opts.attention, "attention", false, "Request attention rollout artifact")
	cmd.Flags().BoolVar(&opts.mask, "mask", false, "Request segmentation mask artifact")
	cmd.Flags().BoolVar(&opts.noUncertainty, "no-uncertainty", false, "Disable uncertainty estimation")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the raw result as JSON")

	return cmd
}

// NewSession builds a fully wired session plus its optional history store.
func NewSession(settings *conf.Settings) (*diagnosis.Session, datastore.Interface, error) {
	store := datastore.New(settings)
	if store != nil {
		if err := store.Open(); err != nil {
			return nil, nil, fmt.Errorf("failed to open history database: %w", err)
		}
	}
	session := diagnosis.NewSession(settings, httpclient.NewFromSettings(settings), store, nil)
	return session, store, nil
}

func runAnalysis(settings *conf.Settings, path string, opts *options) error {
	session, store, err := NewSession(settings)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	ctx := context.Background()
	session.Tracker.Probe(ctx)

	if opts.model != "" {
		if err := session.Selector.Select(diagnosis.ModelID(opts.model)); err != nil {
			return err
		}
	}
	if err := applySettings(session, opts); err != nil {
		return err
	}
	if err := session.SetFile(path); err != nil {
		return err
	}

	result, err := session.Submit(ctx)
	if err != nil {
		return err
	}

	if opts.asJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}
	printResult(result)
	return nil
}

func applySettings(session *diagnosis.Session, opts *options) error {
	return session.UpdateSettings(func(p *diagnosis.PreprocessSettings, a *diagnosis.AdvancedOptions, _ *diagnosis.HeatmapSettings) error {
		if err := p.SetBrightness(opts.brightness); err != nil {
			return err
		}
		if err := p.SetContrast(opts.contrast); err != nil {
			return err
		}
		if err := p.SetRotation(opts.rotation); err != nil {
			return err
		}
		p.FlipH = opts.flipH
		p.FlipV = opts.flipV
		p.Enhance = opts.enhance
		p.Sharpen = opts.sharpen

		a.UseMultilayer = opts.multilayer
		a.UseAttentionRollout = opts.attention
		a.GenerateMask = opts.mask
		a.UseUncertainty = !opts.noUncertainty
		return nil
	})
}

func printResult(result *diagnosis.DiagnosisResult) {
	fmt.Printf("Predicted class: %s\n", result.PredictedClass)
	fmt.Printf("Confidence: %.1f%%", result.Confidence)
	if result.HighConfidence() {
		fmt.Print(" (high confidence)")
	}
	fmt.Println()
	fmt.Printf("Model: %s, inference time: %.2fs\n", result.ModelUsed, result.InferenceTime)

	if len(result.Top3) > 0 {
		fmt.Println("Top predictions:")
		for i, p := range result.Top3 {
			fmt.Printf("  %d. %-24s %.1f%%\n", i+1, p.Class, p.Confidence*100)
		}
	}
	if result.Uncertainty != nil {
		fmt.Printf("Uncertainty: %.3f, entropy: %.3f\n",
			result.Uncertainty.UncertaintyScore, result.Uncertainty.Entropy)
	}
}
