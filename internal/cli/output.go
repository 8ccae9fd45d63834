package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/rennerdo30/auto-proxy/internal/proxy"
	"github.com/rennerdo30/auto-proxy/internal/target"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorders(tablewriter.Border{Left: false, Top: false, Right: false, Bottom: false})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	return table
}

func writeReport(w io.Writer, report target.Report) {
	table := newTable(w, "target", "result", "detail")
	for _, o := range report.Outcomes {
		result, detail := "ok", ""
		if !o.OK() {
			result, detail = "failed", o.Err.Error()
		}
		table.Append([]string{o.Target, result, detail})
	}
	table.Render()

	if failed := len(report.Failed()); failed > 0 {
		fmt.Fprintf(w, "\n%d of %d targets failed\n", failed, len(report.Outcomes))
	}
}

// describe renders a one-line summary without credentials.
func describe(s proxy.Settings) string {
	if !s.Active() {
		return "-"
	}
	var b strings.Builder
	b.WriteString(s.Endpoint("").HostPort())
	if s.Auth.Valid() {
		b.WriteString(" (auth)")
	}
	return b.String()
}

func joinProtocols(ps []proxy.Protocol) string {
	if len(ps) == 0 {
		return "all"
	}
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.String()
	}
	return strings.Join(names, ",")
}

func orDash(list []string) string {
	if len(list) == 0 {
		return "-"
	}
	return strings.Join(list, ",")
}

func writeSnapshots(w io.Writer, snapshots []target.Snapshot) {
	table := newTable(w, "target", "proxy", "protocols", "no proxy")
	for _, snap := range snapshots {
		if len(snap.Settings) == 0 {
			table.Append([]string{snap.Target, "none", "-", "-"})
			continue
		}
		for _, s := range snap.Settings {
			table.Append([]string{snap.Target, describe(s), joinProtocols(s.Protocols), orDash(s.NoProxy)})
		}
	}
	table.Render()
}
