package command

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

const notAvailable = "NA"

type table struct {
	w *tabwriter.Writer
}

func newTable(out io.Writer, header ...string) *table {
	t := &table{w: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)}
	t.row(header...)
	return t
}

func (t *table) row(columns ...string) {
	fmt.Fprintln(t.w, strings.Join(columns, "\t"))
}

func (t *table) flush() error {
	return t.w.Flush()
}

func formatTimestamp(ms int64) string {
	if ms <= 0 {
		return notAvailable
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}

func formatInt(v int64) string {
	return fmt.Sprintf("%d", v)
}
