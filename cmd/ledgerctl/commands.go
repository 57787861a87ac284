package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/ledger"
)

// errVerificationFailed makes `ledgerctl verify` exit non-zero on a bad hash.
var errVerificationFailed = errors.New("verification failed")

// ── store ────────────────────────────────────────────────────────────────────

func newStoreCmd(a *app) *cobra.Command {
	var f ledger.Fields
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Anchor an identity and print its receipt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rcpt, err := a.ledger.Store(cmd.Context(), f)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(rcpt)
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Address:\t%s\n", rcpt.Address)
			fmt.Fprintf(w, "Verification hash:\t%s\n", rcpt.VerificationHash)
			fmt.Fprintf(w, "Signature:\t%s\n", rcpt.Signature)
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&f.FullName, "name", "", "full name (required)")
	cmd.Flags().StringVar(&f.SubjectID, "id", "", "subject ID (required)")
	cmd.Flags().StringVar(&f.NationalID, "aadhaar", "", "national ID number (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("aadhaar")
	return cmd
}

// ── lookup ───────────────────────────────────────────────────────────────────

func newLookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <address>",
		Short: "Print the identity fields stored at an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ok := a.ledger.Lookup(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("address %s not found", args[0])
			}
			if a.jsonOutput() {
				return a.printJSON(f)
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Name:\t%s\n", f.FullName)
			fmt.Fprintf(w, "ID:\t%s\n", f.SubjectID)
			fmt.Fprintf(w, "Aadhaar:\t%s\n", f.NationalID)
			fmt.Fprintf(w, "Captured:\t%s\n", time.UnixMilli(f.Timestamp).UTC().Format(time.RFC3339))
			return w.Flush()
		},
	}
}

// ── verify ───────────────────────────────────────────────────────────────────

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <address> <verification-hash>",
		Short: "Check a presented verification hash against the ledger",
		Long: `verify recomputes the digest of the record at <address> and compares it
with <verification-hash>. It exits non-zero when the address is unknown or
the hash does not match.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.ledger.Verify(cmd.Context(), args[0], args[1])
			if a.jsonOutput() {
				if err := a.printJSON(res); err != nil {
					return err
				}
			} else {
				status := "VALID"
				if !res.Valid {
					status = "INVALID"
				}
				fmt.Fprintf(a.out, "%s (%s)\n", status, res.Reason)
				if res.Fields != nil {
					fmt.Fprintf(a.out, "  %s, aadhaar %s\n", res.Fields.FullName, res.Fields.NationalID)
				}
			}
			if !res.Valid {
				return fmt.Errorf("%w: %s", errVerificationFailed, res.Reason)
			}
			return nil
		},
	}
}

// ── stats ────────────────────────────────────────────────────────────────────

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print ledger statistics",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			st := a.ledger.Stats()
			if a.jsonOutput() {
				return a.printJSON(st)
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Records:\t%d\n", st.Count)
			fmt.Fprintf(w, "Created this run:\t%d\n", st.CounterDelta)
			fmt.Fprintf(w, "Snapshot size:\t%d bytes\n", st.ByteSize)
			return w.Flush()
		},
	}
}

// ── clear ────────────────────────────────────────────────────────────────────

func newClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every anchored identity and reset the address counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear the ledger without --yes")
			}
			n := a.ledger.Count()
			if err := a.ledger.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "cleared %d record(s)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive clear")
	return cmd
}

// ── dump ─────────────────────────────────────────────────────────────────────

func newDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every record in creation order",
		Long: `dump prints the ledger in creation order. With --format json the output
is the snapshot encoding itself and can be written back with the file backend.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			entries := a.ledger.Entries()
			if a.jsonOutput() {
				data, err := ledger.EncodeEntries(entries)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, string(data))
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ADDRESS\tNAME\tID\tCREATED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.Address, e.Record.Fields.FullName, e.Record.Fields.SubjectID,
					e.Record.CreatedAt.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

// ── version ──────────────────────────────────────────────────────────────────

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ledgerctl version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(a.out, "ledgerctl", version)
		},
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
