package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"icmpong/internal/journal"
	"icmpong/internal/protocol"
)

func journalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "journal <file>",
		Short: "Print a recorded frame journal",
		Long:  "Decode a journal written with --journal and print one line per frame.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer f.Close()

			return printJournal(cmd.OutOrStdout(), f)
		},
	}
}

func printJournal(w io.Writer, r io.Reader) error {
	jr, err := journal.NewReader(r)
	if err != nil {
		return err
	}

	h := jr.Header()
	fmt.Fprintf(w, "run %s session %d started %s\n", h.RunID, h.SessionID, h.Time.Format(time.RFC3339))

	for {
		rec, err := jr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s %-8s %s %s\n", rec.Time.Format("15:04:05.000"), rec.Direction, rec.Peer, describeFrame(rec.Frame))
	}
}

func describeFrame(b []byte) string {
	f, err := protocol.Decode(b)
	if err != nil {
		return fmt.Sprintf("undecodable (%v)", err)
	}
	msg, err := f.Message()
	if err != nil {
		return fmt.Sprintf("%s (%v)", f, err)
	}
	return fmt.Sprintf("session=%d %s %+v", f.SessionID, f.Type, msg)
}
