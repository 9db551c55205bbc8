package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/naveenspark/shopdrop/internal/app"
	"github.com/naveenspark/shopdrop/internal/tui"
)

func newUICmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive storefront (default)",
		Args:  cobra.NoArgs,
		RunE:  e.withApp(runUI),
	}
}

func runUI(cmd *cobra.Command, a *app.App, _ []string) error {
	p := tea.NewProgram(tui.NewApp(a), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
