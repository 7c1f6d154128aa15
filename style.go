package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	keyword   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render
	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render
	faint     = lipgloss.NewStyle().Faint(true).Render
	warning   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F1C069")).Render
	failure   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true).Render

	label = lipgloss.NewStyle().Width(14)
)

// field renders an aligned "name: value" line.
func field(name string, value interface{}) string {
	return label.Render(name+":") + " " + fmt.Sprint(value)
}
