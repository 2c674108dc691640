package main

import (
	"errors"
	"os"

	"visualsoal/cmd/visualsoal/ui"
	"visualsoal/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// tuiCmd launches the terminal interface
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive terminal interface",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := openApp(commandContext(cmd), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	model := ui.NewModel(a.ctrl, ui.Options{
		Timeout:   stageTimeout(),
		ExportDir: cwd,
	})
	logging.UI("Starting terminal interface")
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(commandContext(cmd))).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
