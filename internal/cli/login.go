// login.go implements "sketchbook login", which stores a bearer token in the config file.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/sketchbook/internal/config"
)

var (
	loginUsername      string
	loginPasswordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save a token",
	Long: `Exchange a username and password for a token and save it to the
client config file. The password is prompted for, or read from standard
input with --password-stdin.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Account username")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from standard input")
	_ = loginCmd.MarkFlagRequired("username")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}

	if !loginPasswordStdin {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	}
	password, err := readLine(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	token, err := a.client.Login(cmd.Context(), loginUsername, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	cfg := *a.cfg
	cfg.Gateway.Token = token
	if err := config.SaveClient(a.configPath, &cfg); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	success.Fprint(cmd.OutOrStdout(), "✓ ")
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s. Token saved to %s\n", loginUsername, a.configPath)
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
