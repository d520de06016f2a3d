package cmd

import (
	"fmt"
	"os"

	"github.com/javi11/davgateway/internal/config"
	"github.com/sethvargo/go-password/password"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/ssh/terminal"
)

var passwdGenerate bool

func init() {
	passwdCmd := &cobra.Command{
		Use:   "passwd [username]",
		Short: "Rotate the static break-glass WebDAV credential",
		Long: `Hash a new password for the static admin account checked ahead of the
backend authenticator (spec §4.2's "UserID/Role: admin" fallback path).
Default user is 'admin'. Prints the webdav.user/webdav.password lines to
paste into config.yaml; the gateway holds no user database to write to
directly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPasswd,
	}
	passwdCmd.Flags().BoolVar(&passwdGenerate, "generate", false, "generate a random password instead of prompting")

	rootCmd.AddCommand(passwdCmd)
}

func runPasswd(cmd *cobra.Command, args []string) error {
	username := "admin"
	if len(args) > 0 {
		username = args[0]
	}
	if _, err := config.LoadConfig(configFile); err != nil {
		return fmt.Errorf("failed to load config from %s: %w", configFile, err)
	}

	var plain string
	if passwdGenerate {
		generated, err := password.Generate(20, 6, 4, false, false)
		if err != nil {
			return fmt.Errorf("generating password: %w", err)
		}
		plain = generated
		fmt.Printf("Generated password: %s\n", plain)
	} else {
		fmt.Printf("Enter new password for %s: ", username)
		bytePassword, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("\nfailed to read password: %w", err)
		}
		fmt.Println()

		fmt.Print("Confirm new password: ")
		byteConfirm, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("\nfailed to read confirmation: %w", err)
		}
		fmt.Println()

		plain = string(bytePassword)
		if plain != string(byteConfirm) {
			return fmt.Errorf("passwords do not match")
		}
	}

	if len(plain) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Println("\nAdd the following to config.yaml under webdav:")
	fmt.Printf("  user: %s\n", username)
	fmt.Printf("  password: %s\n", string(hash))
	return nil
}
