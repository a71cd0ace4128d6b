package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/benaskins/strongbox/internal/audit"
	"github.com/spf13/cobra"
)

var (
	auditKey   string
	auditLimit int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent audit log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp("cli")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := audit.ReadEntries(a.audit.Path())
		if err != nil {
			return err
		}
		var shown []audit.Entry
		for _, e := range entries {
			if auditKey == "" || e.Key == auditKey {
				shown = append(shown, e)
			}
		}
		if auditLimit > 0 && len(shown) > auditLimit {
			shown = shown[len(shown)-auditLimit:]
		}
		if len(shown) == 0 {
			fmt.Println("No audit entries")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tACTION\tKEY\tGROUP\tACTOR\tERROR")
		for _, e := range shown {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.Action, e.Key, e.AccessGroup, e.Actor, e.Error)
		}
		return w.Flush()
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditKey, "key", "", "Only show entries for this key")
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Show at most this many entries (0 for all)")
	rootCmd.AddCommand(auditCmd)
}
