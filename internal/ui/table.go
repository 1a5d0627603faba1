package ui

import (
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// RenderTable writes rows as a borderless, left-aligned table.
func RenderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}

// Status colors a status keyword used by plan, deploy and check output.
func Status(status string) string {
	if !supportsColor {
		return status
	}
	switch status {
	case "PASS", "APPLIED", "SUCCESS", "UPLOADED":
		return color.GreenString(status)
	case "FAIL", "FAILED", "ERROR":
		return color.RedString(status)
	case "CHANGED", "WARN", "PENDING", "APPLY":
		return color.YellowString(status)
	case "SKIP", "UNCHANGED", "DRY-RUN":
		return color.HiBlackString(status)
	default:
		return status
	}
}
