package telemetry

import (
	"fmt"
	"io"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand: up, down, status
// and force <version>.
func RunMigrateCommand(w io.Writer, args []string, dbPath string) error {
	if len(args) < 1 {
		PrintMigrateHelp(w)
		return fmt.Errorf("missing migrate action")
	}

	// Migrations manage the schema, so open without applying them.
	store, err := OpenRaw(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch args[0] {
	case "up":
		if err := store.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := store.MigrateDown(); err != nil {
			return err
		}
	case "status":
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: migrate force <version>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := store.MigrateForce(v); err != nil {
			return err
		}
	case "help":
		PrintMigrateHelp(w)
		return nil
	default:
		PrintMigrateHelp(w)
		return fmt.Errorf("unknown migrate action %q", args[0])
	}

	version, dirty, err := store.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(w, "Current version: %d (dirty: %v)\n", version, dirty)
	if dirty {
		fmt.Fprintln(w, "WARNING: a migration failed mid-execution; inspect the database, then run: migrate force <version>")
	}
	return nil
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: migrate <action>

Actions:
  up                 apply all pending migrations
  down               roll back the most recent migration
  status             show the current schema version
  force <version>    set the version without running migrations (recovery only)
  help               show this help
`)
}
