package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/slack-go/slack"

	"github.com/linusjb/boedekassen/internal/fines"
	"github.com/linusjb/boedekassen/internal/metrics"
	"github.com/linusjb/boedekassen/internal/notifier"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Notifier = &Notifier{}

// Notifier handles sending notifications to Slack.
type Notifier struct {
	api       slackClient
	channelID string
	metrics   metrics.Metrics
}

// NewNotifier creates a new Notifier.
func NewNotifier(token, channelID string, metrics metrics.Metrics) *Notifier {
	api := slack.New(token)
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

// NewNotifierWithAPI creates a new Notifier with a specific slack.Client instance.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, metrics metrics.Metrics) *Notifier {
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

func (s *Notifier) sendMessage(message slack.Message, dryRun bool) (string, string, error) {
	if dryRun {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", s.channelID, "message", string(jsonMsg))
		return "dry-run-ts", "dry-run-thread-ts", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(
		ctx,
		s.channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)

	if err != nil {
		s.metrics.IncSlackNotifFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", channelID)
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncSlackNotifSent()
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return channelID, timestamp, nil
}

// SendNewFines announces the fines created by a sync run.
func (s *Notifier) SendNewFines(newFines []fines.Fine, dryRun bool) error {
	if len(newFines) == 0 {
		return nil
	}
	msg := s.formatNewFines(newFines)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

// SendSummary posts the ledger rollup to the channel.
func (s *Notifier) SendSummary(summary *fines.LedgerSummary, dryRun bool) error {
	msg := s.formatSummary(summary)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

// FormatSummaryResponse formats the ledger summary for a slash command response.
func (s *Notifier) FormatSummaryResponse(summary *fines.LedgerSummary) (any, error) {
	return s.formatSummary(summary), nil
}

// FormatPlayerFinesResponse formats one player's fines for a slash command response.
func (s *Notifier) FormatPlayerFinesResponse(playerName string, playerFines []fines.Fine) (any, error) {
	return s.formatPlayerFines(playerName, playerFines), nil
}

// FormatPlayerNotFoundResponse formats a player not found message for a slash command response.
func (s *Notifier) FormatPlayerNotFoundResponse(query string) (any, error) {
	return s.formatPlayerNotFound(query), nil
}

// formatNewFines creates the Slack message for freshly created fines using Block Kit.
func (s *Notifier) formatNewFines(newFines []fines.Fine) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "💸 New fines! 💸", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	var lines []string
	var total int64
	for _, fine := range newFines {
		name := fine.PlayerName
		if name == "" {
			name = fine.PlayerID
		}
		lines = append(lines, fmt.Sprintf("• %s — %s — %d kr.", name, violationLabel(fine.Kind), fine.Amount))
		total += fine.Amount
	}
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", strings.Join(lines, "\n"), true, false), nil, nil))

	contextText := slack.NewTextBlockObject("plain_text", fmt.Sprintf("%d fines, %d kr. into the pot", len(newFines), total), true, false)
	blocks = append(blocks, slack.NewContextBlock("", contextText))

	return slack.NewBlockMessage(blocks...)
}

// formatSummary creates the Slack message for the ledger rollup using Block Kit.
func (s *Notifier) formatSummary(summary *fines.LedgerSummary) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "🏦 Bødekassen 🏦", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	if summary.TotalFines == 0 {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("plain_text", "The ledger is empty. Suspiciously well behaved.", true, false), nil, nil))
		return slack.NewBlockMessage(blocks...)
	}

	var lines []string
	for i, totals := range summary.PlayerTotals {
		name := totals.PlayerName
		if name == "" {
			name = totals.PlayerID
		}
		lines = append(lines, fmt.Sprintf("%d. %s — %d kr. owed (%d kr. paid)", i+1, name, totals.Unpaid, totals.Paid))
	}
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", strings.Join(lines, "\n"), true, false), nil, nil))

	contextText := slack.NewTextBlockObject("plain_text",
		fmt.Sprintf("%d fines total. Outstanding: %d kr. Collected: %d kr.", summary.TotalFines, summary.TotalUnpaid, summary.TotalPaid), true, false)
	blocks = append(blocks, slack.NewContextBlock("", contextText))

	return slack.NewBlockMessage(blocks...)
}

// formatPlayerFines creates the Slack message for one player's fines using Block Kit.
func (s *Notifier) formatPlayerFines(playerName string, playerFines []fines.Fine) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", fmt.Sprintf("💸 Fines for %s 💸", playerName), true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	if len(playerFines) == 0 {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("plain_text", "No fines on record. For now.", true, false), nil, nil))
		return slack.NewBlockMessage(blocks...)
	}

	loc, locErr := time.LoadLocation("Europe/Copenhagen")
	var lines []string
	var unpaid int64
	for _, fine := range playerFines {
		created := time.Unix(fine.CreatedAt, 0)
		if locErr == nil {
			created = created.In(loc)
		}
		status := "unpaid"
		if fine.Status == fines.StatusPaid {
			status = "paid"
		} else {
			unpaid += fine.Amount
		}
		lines = append(lines, fmt.Sprintf("• %s — %d kr. — %s (%s)",
			violationLabel(fine.Kind), fine.Amount, status, created.Format("02 Jan 2006")))
	}
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", strings.Join(lines, "\n"), true, false), nil, nil))

	contextText := slack.NewTextBlockObject("plain_text", fmt.Sprintf("Outstanding: %d kr.", unpaid), true, false)
	blocks = append(blocks, slack.NewContextBlock("", contextText))

	return slack.NewBlockMessage(blocks...)
}

// formatPlayerNotFound creates the Slack message for an unknown player query.
func (s *Notifier) formatPlayerNotFound(query string) slack.Message {
	text := slack.NewTextBlockObject("plain_text", fmt.Sprintf("No player found matching %q.", query), true, false)
	return slack.NewBlockMessage(slack.NewSectionBlock(text, nil, nil))
}

func violationLabel(kind fines.ViolationKind) string {
	switch kind {
	case fines.ViolationMissingTraining:
		return "missed training"
	case fines.ViolationMissingMatch:
		return "missed match"
	case fines.ViolationLateResponse:
		return "late response"
	}
	return string(kind)
}
