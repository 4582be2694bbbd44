package main

import (
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
)

// stdout receives table output; tests swap it for a buffer
var stdout io.Writer = os.Stdout

func renderTable(header []string, rows [][]string) {
	table := tablewriter.NewWriter(stdout)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetRowLine(true)
	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
}
