package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gramops/pkg/auth"
)

// accountsCmd groups credential management subcommands.
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage stored account credentials",
	Long: `Manage stored account credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your credentials or config files!`,
}

// accountsAddCmd stores one account's credentials.
var accountsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Store credentials for an account",
	Long: `Store API credentials for an account.

You will be prompted for the phone number, API id, API hash and an optional
exported session string. Secrets are hidden as you type.`,
	Example: `  gramops accounts add worker1`,
	Args:    cobra.ExactArgs(1),
	RunE:    runAccountsAdd,
}

// accountsListCmd lists stored accounts with masked secrets.
var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	RunE:  runAccountsList,
}

// accountsRemoveCmd deletes stored credentials.
var accountsRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsRemove,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	if manager.Exists(name) {
		fmt.Printf("Account %q already exists. Update credentials? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("Phone number: ")
	phone, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read phone number: %w", err)
	}
	phone = strings.TrimSpace(phone)

	fmt.Print("API id: ")
	apiIDInput, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read API id: %w", err)
	}
	apiID, err := strconv.Atoi(strings.TrimSpace(apiIDInput))
	if err != nil || apiID <= 0 {
		return fmt.Errorf("API id must be a positive number")
	}

	fmt.Print("API hash (hidden): ")
	apiHash, err := readSecret()
	if err != nil {
		return fmt.Errorf("failed to read API hash: %w", err)
	}
	if apiHash == "" {
		return fmt.Errorf("API hash is required")
	}

	fmt.Print("Session string (hidden, optional): ")
	session, err := readSecret()
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	creds := &auth.Credentials{
		Name:         name,
		Phone:        phone,
		APIID:        apiID,
		APIHash:      apiHash,
		Session:      session,
		LastModified: time.Now(),
	}
	if err := manager.Store(creds); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	fmt.Printf("Credentials stored for %q.\n", name)
	fmt.Printf("Add the account to your accounts file to use it:\n")
	fmt.Printf("  - name: %s\n    phone: %s\n", name, phone)
	return nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		fmt.Println("No stored accounts. Use 'gramops accounts add' to add one.")
		return nil
	}

	for i, creds := range accounts {
		sanitized := auth.Sanitize(creds)
		fmt.Printf("%d. %s\n", i+1, sanitized.Name)
		fmt.Printf("   Phone:    %s\n", sanitized.Phone)
		fmt.Printf("   API id:   %d\n", sanitized.APIID)
		fmt.Printf("   API hash: %s\n", sanitized.APIHash)
		fmt.Printf("   Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
	return nil
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	fmt.Printf("Account removed: %s\n", name)
	return nil
}

// readSecret reads a line from stdin without echoing when possible.
func readSecret() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
