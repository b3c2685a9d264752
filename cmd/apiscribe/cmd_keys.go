package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"apiscribe/internal/credentials"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage provider API keys in the OS keyring",
}

var keysSetCmd = &cobra.Command{
	Use:   "set <openai|anthropic|gemini>",
	Short: "Store a key read from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := readKey(cmd.InOrStdin())
		if err != nil {
			return err
		}
		if err := credentials.NewResolver().Store(args[0], []byte(key)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s stored %s key\n", okStyle.Render("✓"), args[0])
		return nil
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <openai|anthropic|gemini>",
	Short: "Remove a stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := credentials.NewResolver().Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %s key\n", okStyle.Render("✓"), args[0])
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers with a stored key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		providers, err := credentials.NewResolver().List()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(providers) == 0 {
			fmt.Fprintln(w, "no keys stored")
		}
		for _, p := range providers {
			fmt.Fprintf(w, "%s (%s)\n", p, credentials.EnvVars[p])
		}
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysSetCmd)
	keysCmd.AddCommand(keysDeleteCmd)
	keysCmd.AddCommand(keysListCmd)
}

// readKey reads the first line of r.
func readKey(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("no key on stdin")
	}
	return key, nil
}
