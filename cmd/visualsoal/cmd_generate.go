package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"visualsoal/internal/history"
	"visualsoal/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	genStyle string
	genRatio string
	runOut   string
)

// runCmd executes both pipeline stages
var runCmd = &cobra.Command{
	Use:   "run [stimulus]",
	Short: "Analyze a stimulus and render its image",
	Long: `Runs the full pipeline for one stimulus:
  1. Analyze: sociology analysis and English visual prompt
  2. Render: image from the prompt, saved to history

Example:
  visualsoal run --style sketch --ratio 1:1 --out ./images \
    "Interaksi sosial di pasar tradisional yang menunjukkan akulturasi budaya"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPipeline,
}

// analyzeCmd executes the first stage only
var analyzeCmd = &cobra.Command{
	Use:   "analyze [stimulus]",
	Short: "Analyze a stimulus and print the visual prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	for _, c := range []*cobra.Command{runCmd, analyzeCmd} {
		c.Flags().StringVarP(&genStyle, "style", "s", string(types.StyleThreeD), "Visual style: 3d, realistic, flat, sketch")
		c.Flags().StringVarP(&genRatio, "ratio", "r", string(types.AspectLandscape), "Aspect ratio: 16:9, 1:1, 9:16 (or landscape, square, portrait)")
	}
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Also write the image file to this directory")
}

func parseChoices() (types.Style, types.AspectRatio, error) {
	style, err := types.ParseStyle(genStyle)
	if err != nil {
		return "", "", err
	}
	ratio, err := types.ParseAspectRatio(genRatio)
	if err != nil {
		return "", "", err
	}
	return style, ratio, nil
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	style, ratio, err := parseChoices()
	if err != nil {
		return err
	}
	a, err := openApp(commandContext(cmd), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := stageContext(cmd)
	defer cancel()

	start := time.Now()
	if err := a.ctrl.Analyze(ctx, joinArgs(args), style, ratio); err != nil {
		logger.Warn("analysis failed", zap.String("kind", string(types.KindOf(err))), zap.Error(err))
		return a.userError(err)
	}
	logger.Debug("analysis complete", zap.Duration("elapsed", time.Since(start)))

	printAnalysis(cmd.OutOrStdout(), a.ctrl.Snapshot())
	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	style, ratio, err := parseChoices()
	if err != nil {
		return err
	}
	a, err := openApp(commandContext(cmd), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	out := cmd.OutOrStdout()

	analyzeCtx, cancelAnalyze := stageContext(cmd)
	defer cancelAnalyze()
	if err := a.ctrl.Analyze(analyzeCtx, joinArgs(args), style, ratio); err != nil {
		logger.Warn("analysis failed", zap.String("kind", string(types.KindOf(err))), zap.Error(err))
		return a.userError(err)
	}
	printAnalysis(out, a.ctrl.Snapshot())

	renderCtx, cancelRender := stageContext(cmd)
	defer cancelRender()
	renderErr := a.ctrl.StartRender(renderCtx)
	if renderErr != nil && !types.IsKind(renderErr, types.KindPersistenceWrite) {
		logger.Warn("render failed", zap.String("kind", string(types.KindOf(renderErr))), zap.Error(renderErr))
		return a.userError(renderErr)
	}

	st := a.ctrl.Snapshot()
	rec := types.Record{ID: fmt.Sprintf("visual-soal-%d", time.Now().UnixMilli()), ImageData: st.ImageData}
	if renderErr != nil {
		// Image exists but history did not take it.
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", st.Error)
	} else if h := a.ctrl.History(); len(h) > 0 {
		rec = h[0]
		fmt.Fprintf(out, "\nSaved to history as %s\n", rec.ID)
	}
	logger.Info("pipeline complete", zap.String("id", rec.ID), zap.Int("image_bytes", len(st.ImageData)))

	if runOut != "" {
		path, err := history.ExportImage(rec, runOut)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Image written to %s\n", path)
	}
	return nil
}

func printAnalysis(w io.Writer, st types.State) {
	fmt.Fprintf(w, "Style: %s  Ratio: %s\n\n", st.Style.Label(), st.AspectRatio)
	fmt.Fprintln(w, "== Analysis ==")
	fmt.Fprintln(w, strings.TrimSpace(st.Analysis))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "== Visual prompt ==")
	fmt.Fprintln(w, strings.TrimSpace(st.VisualPrompt))
}
