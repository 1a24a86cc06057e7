package commands

import (
	"bufio"
	"fmt"
	"strings"

	"englishapp/internal/observability"
	"englishapp/internal/services"
	contextutils "englishapp/internal/utils"

	"github.com/spf13/cobra"
)

// UserCommands returns the user management commands
func UserCommands(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long: `User management commands for the English learning backend.

Available commands:
  list            - List users by experience points
  reset-password  - Reset password for a specific user`,
	}

	userCmd.AddCommand(listCmd(userService, logger))
	userCmd.AddCommand(resetPasswordCmd(userService, logger))

	return userCmd
}

func listCmd(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users by experience points",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			users, err := userService.ListUsers(ctx, limit)
			if err != nil {
				logger.Error(ctx, "Failed to list users", err)
				return contextutils.WrapError(err, "failed to list users")
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found")
				return nil
			}

			fmt.Fprintf(out, "%-36s %-20s %-24s %8s %6s %-10s\n", "ID", "Username", "Name", "XP", "Streak", "Created")
			fmt.Fprintln(out, strings.Repeat("-", 109))
			for _, user := range users {
				fmt.Fprintf(out, "%-36s %-20s %-24s %8d %6d %-10s\n",
					user.ID,
					user.Username,
					user.Name,
					user.XP,
					user.Streak,
					user.CreatedAt.Format("2006-01-02"),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of users to list")
	return cmd
}

func resetPasswordCmd(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password [username]",
		Short: "Reset password for a user",
		Long: `Reset the password for a specific user. If username is not provided, you will be prompted for it.
On a terminal the password is read twice without echo; otherwise it is read from the first line of stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			in := bufio.NewReader(cmd.InOrStdin())

			var username string
			if len(args) > 0 {
				username = args[0]
			} else {
				fmt.Fprint(out, "Enter username: ")
				line, err := in.ReadString('\n')
				if err != nil && line == "" {
					return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read username: %w", err)
				}
				username = strings.TrimSpace(line)
			}
			if username == "" {
				return contextutils.WrapError(contextutils.ErrMissingRequired, "username is required")
			}

			password, err := promptPassword(cmd, in)
			if err != nil {
				return err
			}

			if err := userService.ResetPassword(ctx, username, password); err != nil {
				logger.Error(ctx, "Failed to reset password", err, map[string]interface{}{"username": username})
				return err
			}

			fmt.Fprintf(out, "Password reset for user '%s'\n", username)
			return nil
		},
	}
}

func promptPassword(cmd *cobra.Command, in *bufio.Reader) (string, error) {
	out := cmd.OutOrStdout()

	if !isTerminal() {
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", contextutils.WrapError(contextutils.ErrMissingRequired, "password cannot be empty")
		}
		return password, nil
	}

	fmt.Fprint(out, "Enter new password: ")
	first, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read password: %w", err)
	}
	if len(first) == 0 {
		return "", contextutils.WrapError(contextutils.ErrMissingRequired, "password cannot be empty")
	}

	fmt.Fprint(out, "Confirm new password: ")
	second, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read password confirmation: %w", err)
	}
	if string(first) != string(second) {
		return "", contextutils.WrapError(contextutils.ErrInvalidInput, "passwords do not match")
	}
	return string(first), nil
}
