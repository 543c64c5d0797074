package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/statement-lens/internal/statement"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("statement-history")
	var (
		dbPath      = fs.StringLong("db", "statement-lens.db", "Database file path")
		sessionID   = fs.StringLong("session", "", "Print the stored extraction result for one session")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("STATEMENT_LENS"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	db, err := statement.NewBoltDB(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if *sessionID != "" {
		if err := printResult(db, *sessionID); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := printSessions(db); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// printSessions lists every session with its workflow state.
func printSessions(db statement.DB) error {
	sessions, err := db.ListSessions()
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return nil
	}

	fmt.Printf("%-38s %-10s %-16s %5s  %s\n", "ID", "PAGES", "STEP", "SEL", "UPDATED")
	for _, s := range sessions {
		selected := 0
		if s.Selection != nil {
			selected = s.Selection.Len()
		}
		fmt.Printf("%-38s %-10d %-16s %5d  %s\n",
			s.ID, s.PageCount, s.Step, selected, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// printResult dumps the last persisted run for one session as JSON.
func printResult(db statement.DB, sessionID string) error {
	result, err := db.GetResult(sessionID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
