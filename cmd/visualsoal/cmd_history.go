package main

import (
	"fmt"
	"strings"

	"visualsoal/internal/history"
	"visualsoal/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	showPromptOnly bool
	exportDir      string
)

// historyCmd groups history management commands
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and manage saved results",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved results, newest first",
	Args:  cobra.NoArgs,
	RunE:  historyList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one saved result",
	Long: `Prints a saved result. With --prompt only the visual prompt is printed,
which is convenient for piping into a clipboard tool:

  visualsoal history show 3f2a --prompt | pbcopy`,
	Args: cobra.ExactArgs(1),
	RunE: historyShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a saved result",
	Args:  cobra.ExactArgs(1),
	RunE:  historyDelete,
}

var historyExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Write a saved image to disk",
	Args:  cobra.ExactArgs(1),
	RunE:  historyExport,
}

func init() {
	historyShowCmd.Flags().BoolVar(&showPromptOnly, "prompt", false, "Print only the visual prompt")
	historyExportCmd.Flags().StringVarP(&exportDir, "dir", "d", ".", "Destination directory")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyExportCmd)
}

func historyList(cmd *cobra.Command, args []string) error {
	a, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	records := a.store.Records()
	if len(records) == 0 {
		fmt.Fprintln(out, "No history yet.")
		return nil
	}
	fmt.Fprintf(out, "%-36s  %-16s  %-11s  %-5s  %s\n", "ID", "CREATED", "STYLE", "RATIO", "STIMULUS")
	for _, r := range records {
		fmt.Fprintf(out, "%-36s  %-16s  %-11s  %-5s  %s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Style.Label(), r.AspectRatio, preview(r.SourceText, 48))
	}
	fmt.Fprintf(out, "\n%d of %d slots used\n", len(records), a.store.Capacity())
	return nil
}

func historyShow(cmd *cobra.Command, args []string) error {
	a, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.findRecord(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if showPromptOnly {
		fmt.Fprintln(out, rec.VisualPrompt)
		return nil
	}

	fmt.Fprintf(out, "ID:       %s\n", rec.ID)
	fmt.Fprintf(out, "Created:  %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Style:    %s\n", rec.Style.Label())
	fmt.Fprintf(out, "Ratio:    %s (%s)\n", rec.AspectRatio, rec.AspectRatio.Label())
	fmt.Fprintf(out, "Image:    %s\n", imageInfo(rec))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "== Stimulus ==")
	fmt.Fprintln(out, rec.SourceText)
	fmt.Fprintln(out)
	printAnalysis(out, types.State{
		Style:        rec.Style,
		AspectRatio:  rec.AspectRatio,
		Analysis:     rec.AnalysisText,
		VisualPrompt: rec.VisualPrompt,
	})
	return nil
}

func historyDelete(cmd *cobra.Command, args []string) error {
	a, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.findRecord(args[0])
	if err != nil {
		return err
	}
	if _, err := a.store.Remove(rec.ID); err != nil {
		return fmt.Errorf("%s: %w", a.catalog.Text(err), err)
	}
	logger.Info("history record deleted", zap.String("id", rec.ID))
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", rec.ID)
	return nil
}

func historyExport(cmd *cobra.Command, args []string) error {
	a, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.findRecord(args[0])
	if err != nil {
		return err
	}
	path, err := history.ExportImage(rec, exportDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Image written to %s\n", path)
	return nil
}

func imageInfo(rec types.Record) string {
	if rec.ImageData == "" {
		return "none"
	}
	mime, data, err := types.DecodeDataURL(rec.ImageData)
	if err != nil {
		return "unreadable (" + err.Error() + ")"
	}
	return fmt.Sprintf("%s, %d bytes", mime, len(data))
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}
