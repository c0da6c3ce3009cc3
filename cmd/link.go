package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/whenfree/whenfree/internal/calendar"
	"github.com/whenfree/whenfree/internal/google"
	"github.com/whenfree/whenfree/internal/store"
)

func newLinkCmd() *cobra.Command {
	var (
		cfgPath string
		user    string
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link a Google account via OAuth",
		Long: `Prints a Google authorization URL, waits for the authorization code,
exchanges it for tokens and stores the account. The account's calendar list
is synced right away so aggregation can start immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(cmd, cfgPath, user)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Path to the config file (default: user config dir)")
	cmd.Flags().StringVar(&user, "user", "default", "User identifier the account belongs to")

	return cmd
}

func runLink(cmd *cobra.Command, cfgPath, user string) error {
	application, err := newApp(cfgPath, nil, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.requireOAuthCredentials(); err != nil {
		return err
	}

	ctx := cmd.Context()

	fmt.Fprintf(cmd.OutOrStdout(), "Visit this URL to authorize access:\n\n  %s\n\nEnter the authorization code: ",
		google.AuthCodeURL(application.oauth))

	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("no authorization code provided")
	}

	token, err := application.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return fmt.Errorf("Google did not return a refresh token; revoke access at https://myaccount.google.com/permissions and link again")
	}

	client, err := calendar.NewClient(ctx, google.HTTPClient(ctx, token.AccessToken), application.metrics)
	if err != nil {
		return fmt.Errorf("failed to create calendar client: %w", err)
	}
	calendars, err := client.ListCalendars(ctx)
	if err != nil {
		return fmt.Errorf("failed to list calendars: %w", err)
	}

	account := &store.Account{
		UserID:       user,
		Email:        primaryCalendarID(calendars),
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		LinkedAt:     time.Now().UTC(),
	}
	if err := application.store.CreateAccount(account); err != nil {
		return fmt.Errorf("failed to store account: %w", err)
	}
	if err := application.store.SyncCalendars(account.ID, calendars); err != nil {
		return fmt.Errorf("failed to sync calendars: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nLinked account %s (id %d) with %d calendar(s) for user %q.\n",
		account.Email, account.ID, len(calendars), user)
	return nil
}

// primaryCalendarID returns the primary calendar's ID, which for Google is
// the account's email address.
func primaryCalendarID(calendars []store.Calendar) string {
	for _, cal := range calendars {
		if cal.Primary {
			return cal.ProviderCalendarID
		}
	}
	return ""
}

func newUnlinkCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "unlink <account-id>",
		Short: "Remove a linked account and its synced calendars",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnlink(cmd, cfgPath, args[0])
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Path to the config file (default: user config dir)")

	return cmd
}

func runUnlink(cmd *cobra.Command, cfgPath, rawID string) error {
	application, err := newApp(cfgPath, nil, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid account id %q", rawID)
	}

	account, err := application.store.GetAccount(id)
	if err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}
	if account == nil {
		return fmt.Errorf("no account with id %d", id)
	}

	if err := application.store.DeleteAccount(id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Unlinked account %s (id %d).\n", account.Email, id)
	return nil
}
