package notifier

import "github.com/linusjb/boedekassen/internal/fines"

// Notifier defines a high-level interface for sending notifications about business events.
// This decouples the rest of the application from the specific notification provider (e.g., Slack).
type Notifier interface {
	// For fines created by a sync run
	SendNewFines(newFines []fines.Fine, dryRun bool) error
	// For the ledger rollup
	SendSummary(summary *fines.LedgerSummary, dryRun bool) error

	// For formatting responses for slash commands
	FormatSummaryResponse(summary *fines.LedgerSummary) (any, error)
	FormatPlayerFinesResponse(playerName string, playerFines []fines.Fine) (any, error)
	FormatPlayerNotFoundResponse(query string) (any, error)
}
