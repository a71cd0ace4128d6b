package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/benaskins/strongbox/internal/codec"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.env>",
	Short: "Import secrets from a dotenv file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := godotenv.Read(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		if len(env) == 0 {
			fmt.Println("Nothing to import")
			return nil
		}

		a, err := openApp("cli")
		if err != nil {
			return err
		}
		defer a.Close()

		values := make(map[string][]byte, len(env))
		for k, v := range env {
			values[k] = codec.String.Encode(v)
		}
		a.store.Import(values, args[0])
		fmt.Printf("Imported %d secret(s) from %s\n", len(values), args[0])
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print text secrets in dotenv format",
	Long:  "Print every secret that decodes as text in dotenv format. Binary values are skipped and listed on stderr.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp("cli")
		if err != nil {
			return err
		}
		defer a.Close()

		env := make(map[string]string)
		var skipped []string
		for _, k := range a.store.Keys() {
			data, ok := a.store.Data(k)
			if !ok {
				continue
			}
			v, ok := codec.String.Decode(data)
			if !ok {
				skipped = append(skipped, k)
				continue
			}
			env[k] = v
		}

		out, err := godotenv.Marshal(env)
		if err != nil {
			return err
		}
		if out != "" {
			fmt.Println(out)
		}
		sort.Strings(skipped)
		for _, k := range skipped {
			fmt.Fprintf(os.Stderr, "skipped %q: not text\n", k)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd, exportCmd)
}
