package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/benaskins/strongbox/internal/codec"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var valueType string

var setCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Store a secret",
	Long:  "Store a secret. If value is omitted, reads from the terminal without echo, or from stdin when piped.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := lookupType()
		if err != nil {
			return err
		}
		key := args[0]

		var raw string
		if len(args) == 2 {
			raw = args[1]
		} else {
			raw, err = readValue(os.Stdin)
			if err != nil {
				return err
			}
		}

		data, err := text.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing %s value: %w", text.Name(), err)
		}

		a, err := openApp("cli")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.set(key, data); err != nil {
			return err
		}
		fmt.Printf("Secret %q stored\n", key)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Retrieve a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := lookupType()
		if err != nil {
			return err
		}
		a, err := openApp("cli")
		if err != nil {
			return err
		}
		defer a.Close()

		data, ok := a.store.Data(args[0])
		if !ok {
			return fmt.Errorf("secret %q not found", args[0])
		}
		s, ok := text.Format(data)
		if !ok {
			return fmt.Errorf("secret %q is not a valid %s", args[0], text.Name())
		}
		fmt.Println(s)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List stored secrets with their metadata",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp("cli")
		if err != nil {
			return err
		}
		defer a.Close()

		keys := a.store.Keys()
		if len(keys) == 0 {
			fmt.Println("No secrets stored")
			return nil
		}

		now := time.Now()
		meta := a.store.Metadata()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tUPDATED\tROTATE\tSTATUS")
		for _, k := range keys {
			updated, rotate, status := "-", "-", ""
			if m := meta.Get(k); m != nil {
				last := m.UpdatedAt
				if last.IsZero() {
					last = m.CreatedAt
				}
				if !last.IsZero() {
					updated = formatAge(now.Sub(last))
				}
				if m.RotateEvery != "" {
					rotate = m.RotateEvery
				}
				if m.RotationDue(now) {
					status = "stale"
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k, updated, rotate, status)
		}
		return w.Flush()
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <key>",
	Short:   "Remove a secret",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp("cli")
		if err != nil {
			return err
		}
		defer a.Close()

		a.store.Delete(args[0])
		fmt.Printf("Secret %q deleted\n", args[0])
		return nil
	},
}

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every secret in the access group",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("refusing to clear without --yes")
		}
		a, err := openApp("cli")
		if err != nil {
			return err
		}
		defer a.Close()

		n := len(a.store.Keys())
		a.store.Clear()
		scope := a.cfg.AccessGroup
		if scope == "" {
			scope = "default group"
		}
		fmt.Printf("Cleared %d secret(s) from %s\n", n, scope)
		return nil
	},
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the value types accepted by --type",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range codec.Names() {
			fmt.Println(name)
		}
	},
}

// set writes through the audited store and reads back through the plain one,
// so the check does not log a read.
func (a *app) set(key string, data []byte) error {
	a.store.SetData(key, data)
	if got, ok := a.plain.Data(key); !ok || !bytes.Equal(got, data) {
		return fmt.Errorf("secret %q was not stored (vault refused the write; run with -v for details)", key)
	}
	return nil
}

func lookupType() (codec.Text, error) {
	text, ok := codec.Lookup(valueType)
	if !ok {
		return nil, fmt.Errorf("unknown type %q (want one of %s)", valueType, strings.Join(codec.Names(), ", "))
	}
	return text, nil
}

func readValue(in *os.File) (string, error) {
	if term.IsTerminal(int(in.Fd())) {
		fmt.Fprint(os.Stderr, "Enter secret value: ")
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func init() {
	for _, c := range []*cobra.Command{setCmd, getCmd} {
		c.Flags().StringVarP(&valueType, "type", "t", "string", "Value type: "+strings.Join(codec.Names(), ", "))
	}
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm removal of every secret in scope")

	rootCmd.AddCommand(setCmd, getCmd, listCmd, deleteCmd, clearCmd, typesCmd)
}
