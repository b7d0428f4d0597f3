package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/stackforge/pkg/binaries"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight for emphasized values.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleLink for URLs.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleStatusOK      = lipgloss.NewStyle().Foreground(colorGreen)
	styleStatusBuild   = lipgloss.NewStyle().Foreground(colorYellow)
	styleStatusMissing = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	styleTableHeader   = lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// =============================================================================
// File Output
// =============================================================================

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// =============================================================================
// Key-Value Output
// =============================================================================

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// =============================================================================
// Status Table
// =============================================================================

// statusRow is one node of a binary analysis.
type statusRow struct {
	Node      string
	PackageID string
	Status    binaries.Status
	Describe  string
	Where     string
}

// statusStyle colors a binary status.
func statusStyle(s binaries.Status) lipgloss.Style {
	switch s {
	case binaries.StatusCache, binaries.StatusDownload, binaries.StatusEditable:
		return styleStatusOK
	case binaries.StatusBuild:
		return styleStatusBuild
	case binaries.StatusMissing:
		return styleStatusMissing
	}
	return StyleDim
}

// renderStatusTable renders rows as aligned columns.
func renderStatusTable(rows []statusRow) string {
	nodeW, idW := len("NODE"), len("PACKAGE ID")
	for _, r := range rows {
		nodeW = max(nodeW, lipgloss.Width(r.Node))
		idW = max(idW, len(shortPackageID(r.PackageID)))
	}
	nodeCol := lipgloss.NewStyle().Width(nodeW + 2)
	idCol := lipgloss.NewStyle().Width(idW + 2)

	var b strings.Builder
	b.WriteString(styleTableHeader.Render(nodeCol.Render("NODE")+idCol.Render("PACKAGE ID")+"STATUS") + "\n")
	for _, r := range rows {
		line := nodeCol.Render(r.Node) + StyleDim.Render(idCol.Render(shortPackageID(r.PackageID))) + statusStyle(r.Status).Render(r.Describe)
		if r.Where != "" {
			line += StyleDim.Render(" " + iconArrow + " " + r.Where)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func shortPackageID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func roundMS(d time.Duration) time.Duration { return d.Round(time.Millisecond) }

// =============================================================================
// Commands & Next Steps
// =============================================================================

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}
