package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rudransh-shrivastava/peer-drop/internal/history"
	"github.com/rudransh-shrivastava/peer-drop/internal/transfer"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "show recent transfers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		records, err := history.NewStore(db).List(context.Background(), historyLimit)
		if err != nil {
			return err
		}
		return printHistory(os.Stdout, records, time.Now())
	},
}

func printHistory(out io.Writer, records []transfer.Record, now time.Time) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No transfers yet")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tDIRECTION\tFILE\tSIZE\tPEER\tRESULT")
	for _, r := range records {
		result := r.State
		if r.Reason != "" {
			result += " (" + r.Reason + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.RelTime(r.FinishedAt, now, "ago", "from now"),
			r.Direction,
			r.File.Name,
			humanize.Bytes(uint64(r.File.Size)),
			r.PeerID,
			result,
		)
	}
	return w.Flush()
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of transfers to show")
}
