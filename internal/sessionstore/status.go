package sessionstore

import (
	"fmt"
	"io"
	"sort"

	"github.com/sleepdata/cpapinsight/schema"
)

// PrintStoreStatus prints session store status information.
func PrintStoreStatus(w io.Writer, status schema.StoreStatus) {
	_, _ = fmt.Fprintf(w, "Store Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Total Sessions: %d\n", status.TotalSessions)
	if status.TotalSessions > 0 {
		_, _ = fmt.Fprintf(w, "First Night: %s\n", status.FirstSession.Format(schema.DateFormat))
		_, _ = fmt.Fprintf(w, "Last Night: %s\n", status.LastSession.Format(schema.DateFormat))
	}
	_, _ = fmt.Fprintf(w, "Total Runs: %d\n", status.TotalRuns)
	if status.TotalRuns > 0 {
		_, _ = fmt.Fprintf(w, "Last Run ID: %s\n", status.LastRunID)
		_, _ = fmt.Fprintf(w, "Last Run: %s\n", status.LastRunTime.Local().Format("2006-01-02 15:04:05"))
	}
	tables := make([]string, 0, len(status.TableSizes))
	for table := range status.TableSizes {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	_, _ = fmt.Fprintln(w, "Table Sizes:")
	for _, table := range tables {
		_, _ = fmt.Fprintf(w, "  %s: %d rows\n", table, status.TableSizes[table])
	}
}
