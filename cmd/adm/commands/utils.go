package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"
)

// readPassword reads a password from the terminal without echo
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(syscall.Stdin))
}

// isTerminal reports whether stdin is interactive
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// getDatabaseInfo returns database connection information
func getDatabaseInfo(ctx context.Context, db *sql.DB) string {
	if db == nil {
		return "Not connected"
	}

	var dbName string
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		return "Connected (unknown database)"
	}

	var host sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT inet_server_addr()::text").Scan(&host); err != nil || !host.Valid {
		return fmt.Sprintf("Connected to %s", dbName)
	}

	return fmt.Sprintf("Connected to %s on %s", dbName, host.String)
}
