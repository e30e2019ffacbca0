package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/andresmejia3/facegate/internal/logger"
	"github.com/andresmejia3/facegate/internal/types"
	"github.com/andresmejia3/facegate/internal/utils"
	"github.com/andresmejia3/facegate/internal/vision"
	"github.com/spf13/cobra"
)

var verifyOpts Options

var verifyCmd = &cobra.Command{
	Use:   "verify <image_path>",
	Short: "Check a single photo against the reference corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		applyOptions(cmd, Cfg, verifyOpts)
		if err := validateConfig(Cfg); err != nil {
			return err
		}
		return runVerify(cmd.Context(), args[0])
	},
}

func init() {
	verifyCmd.Flags().Float64VarP(&verifyOpts.Threshold, "threshold", "t", 0, "Face matching threshold (lower is stricter)")
	verifyCmd.Flags().StringVar(&verifyOpts.CorpusPath, "corpus", "", "Directory of reference face images")
	verifyCmd.Flags().StringVar(&verifyOpts.CorpusSource, "corpus-source", "", "Reference corpus source (dir or postgres)")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(ctx context.Context, imagePath string) error {
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		utils.ShowError("Input file does not exist", err)
		return err
	}

	fmt.Fprintln(os.Stderr, "🚀 Loading face models...")
	detector, verifier, cleanup, err := newVerifier(ctx, Cfg, logger.Log())
	if err != nil {
		utils.ShowError("Failed to prepare recognition", err)
		return err
	}
	defer cleanup()

	data, err := os.ReadFile(imagePath)
	if err != nil {
		utils.ShowError("Failed to read image file", err)
		return err
	}
	img, err := vision.Decode(data)
	if err != nil {
		utils.ShowError("Failed to decode image", err)
		return err
	}

	fmt.Fprintln(os.Stderr, "🔍 Analyzing face...")
	faces, err := detector.Detect(img)
	if err != nil {
		utils.ShowError("Face detection failed", err)
		return err
	}
	face, ok := vision.Largest(faces)
	if !ok {
		fmt.Println("❌ No faces detected in the provided image.")
		return nil
	}
	if len(faces) > 1 {
		fmt.Printf("⚠️  Multiple faces detected (%d). Using the largest face.\n", len(faces))
	}

	res, err := verifier.Verify(ctx, face.Crop)
	if err != nil {
		return err
	}
	fmt.Println(formatResult(res.Verdict, res.Reference, res.Distance, res.Comparisons))
	return nil
}

func formatResult(v types.Verdict, ref string, dist float64, comparisons int) string {
	switch {
	case v == types.Recognized:
		return fmt.Sprintf("✅ Recognized as %s (distance %.4f)", ref, dist)
	case comparisons == 0:
		return "❌ Not Recognized (reference corpus is empty)"
	case ref == "":
		return fmt.Sprintf("❌ Not Recognized (%d references could not be compared)", comparisons)
	default:
		return fmt.Sprintf("❌ Not Recognized (closest: %s, distance %.4f)", ref, dist)
	}
}
