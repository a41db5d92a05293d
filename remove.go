package main

import (
	"fmt"
	"os"

	"github.com/chaos-io/cutout/cutout"
	"github.com/chaos-io/cutout/segment"
	"github.com/chaos-io/cutout/util"
	httputil "github.com/chaos-io/cutout/util/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the background of a local or remote image",
	RunE:  runRemove,
}

func init() {
	removeCmd.Flags().StringP("input", "i", "", "Input image path or http(s) URL")
	removeCmd.Flags().StringP("output", "o", "", "Output PNG file")
	removeCmd.Flags().String("model", "", "Segmentation model, overrides segmenter.model")
	removeCmd.Flags().String("endpoint", "", "rembg server address, overrides segmenter.endpoint")
	removeCmd.Flags().Int("max-dimension", 0, "Longest side limit in pixels, overrides pipeline.max_dimension")
	removeCmd.Flags().Bool("crop", false, "Trim fully transparent margins")
	removeCmd.Flags().BoolP("verbose", "v", false, "Log every pipeline stage")
	removeCmd.MarkFlagRequired("input")
	removeCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	model, _ := cmd.Flags().GetString("model")
	endpoint, _ := cmd.Flags().GetString("endpoint")
	maxDimension, _ := cmd.Flags().GetInt("max-dimension")
	crop, _ := cmd.Flags().GetBool("crop")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if model != "" {
		cfg.Segmenter.Model = model
	}
	if endpoint != "" {
		cfg.Segmenter.Endpoint = endpoint
	}
	if maxDimension > 0 {
		cfg.Pipeline.MaxDimension = maxDimension
	}

	logger := zap.NewNop()
	if verbose {
		if err := util.InitLogger("debug"); err != nil {
			return err
		}
		defer util.Sync()
		logger = util.Logger
	}

	ctx := cmd.Context()
	inputData, err := util.ReadSource(ctx, httputil.NewHTTPClient(), inputPath)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	remover, err := segment.NewSession(cfg.Segmenter.Session())
	if err != nil {
		return fmt.Errorf("create segmentation session: %w", err)
	}
	pipeline := cutout.NewPipeline(cfg.Pipeline.SizeConstraint(), remover, cfg.Matting.Params(), cutout.WithLogger(logger))

	result, err := pipeline.Run(ctx, inputData, cutout.Options{Crop: crop})
	if err != nil {
		return fmt.Errorf("background removal: %w", err)
	}

	if err := os.WriteFile(outputPath, result.Data, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Printf("Removed background: %dx%d RGBA\n", result.Width, result.Height)
	fmt.Printf("Input:  %s (%d bytes)\n", inputPath, len(inputData))
	fmt.Printf("Output: %s (%d bytes)\n", outputPath, len(result.Data))

	return nil
}
