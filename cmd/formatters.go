package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"yeti/core"
)

// renderTTPTable displays TTPs using the TTP display columns
func renderTTPTable(w io.Writer, ttps []core.TTP) {
	if len(ttps) == 0 {
		warningColor.Fprintln(w, "No TTPs found")
		return
	}

	columns := ttps[0].DisplayFields()

	headerColor.Fprintln(w, "TTPS")
	headerColor.Fprintln(w, strings.Repeat("=", 100))
	fmt.Fprintf(w, "%-26s", "ID")
	for _, col := range columns {
		fmt.Fprintf(w, "%-25s", col.Label)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for i := range ttps {
		info := ttps[i].Info()
		fmt.Fprintf(w, "%-26s", info["id"])
		for _, col := range columns {
			fmt.Fprintf(w, "%-25s", truncate(formatValue(info[col.Field]), 24))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("=", 100))
}

// renderKillChain prints every kill-chain code with its label
func renderKillChain(w io.Writer) {
	headerColor.Fprintln(w, "KILL CHAIN")
	for _, step := range core.KillChainSteps {
		infoColor.Fprintf(w, "  %s", step.String())
		fmt.Fprintf(w, "  %s\n", step.Label())
	}
}

// renderGroup prints a created group
func renderGroup(w io.Writer, g *core.Group) {
	successColor.Fprintf(w, "✓ Created group: %s\n", g.Name)
	printField(w, "ID", g.ID.Hex())
	printField(w, "Enabled", fmt.Sprintf("%t", g.Enabled))
	printField(w, "Members", fmt.Sprintf("%d", len(g.Members)))
	printField(w, "Admins", fmt.Sprintf("%d", len(g.Admins)))
}

// printField prints a key-value field
func printField(w io.Writer, key, value string) {
	if value == "" {
		value = "(not set)"
	}
	fmt.Fprintf(w, "  %-12s %s\n", key+":", value)
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case time.Time:
		return formatTime(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// formatTime formats a timestamp
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
