package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var rotateEvery string

var rotateCmd = &cobra.Command{
	Use:   "rotate <key> [command]",
	Short: "Rotate a secret using a command's output",
	Long: `Run command through /bin/sh and store its trimmed stdout as the new value of key.
With --every, record a rotation interval ("30d", "12h") so that "strongbox stale" reports
the secret once it is due. Either a command or --every is required.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 && rotateEvery == "" {
			return fmt.Errorf("nothing to do: pass a command or --every")
		}
		a, err := openApp("cli")
		if err != nil {
			return err
		}
		defer a.Close()

		key := args[0]
		if rotateEvery != "" {
			if err := a.store.SetRotation(key, rotateEvery); err != nil {
				return err
			}
			fmt.Printf("Secret %q rotates every %s\n", key, rotateEvery)
		}
		if len(args) == 2 {
			if err := a.store.Rotate(key, args[1]); err != nil {
				return err
			}
			fmt.Printf("Secret %q rotated\n", key)
		}
		return nil
	},
}

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List secrets whose rotation interval has elapsed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp("cli")
		if err != nil {
			return err
		}
		defer a.Close()

		stale := a.store.Stale(time.Now().UTC())
		if len(stale) == 0 {
			fmt.Println("No stale secrets")
			return nil
		}
		for _, k := range stale {
			fmt.Println(k)
		}
		return nil
	},
}

func init() {
	rotateCmd.Flags().StringVar(&rotateEvery, "every", "", `Rotation interval, e.g. "30d" or "720h"`)
	rootCmd.AddCommand(rotateCmd, staleCmd)
}
