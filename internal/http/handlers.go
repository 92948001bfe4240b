package http

import (
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/slack-go/slack"

	"github.com/linusjb/boedekassen/internal/fines"
	"github.com/linusjb/boedekassen/internal/pubsub"
)

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

// SyncHandler triggers a reconciliation pass over the last 'days' days.
func (s *Server) SyncHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		isDryRun := isDryRunFromContext(r)

		daysBack := 30
		if daysStr := r.URL.Query().Get("days"); daysStr != "" {
			parsedDays, err := strconv.Atoi(daysStr)
			if err == nil && parsedDays > 0 {
				daysBack = parsedDays
			} else {
				log.Warn("Invalid 'days' parameter provided. Defaulting to 30.", "days_param", daysStr)
			}
		}

		result, err := s.Syncer.Sync(daysBack, isDryRun)
		if err != nil {
			if errors.Is(err, fines.ErrLedgerCorruption) {
				log.Error("Sync halted on ledger corruption", "error", err)
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			log.Error("Sync failed", "error", err)
			http.Error(w, "Sync failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			log.Error("Failed to encode sync result to JSON", "error", err)
		}
	}
}

// ListFinesHandler serves fines, optionally filtered by player, status and
// creation window.
func (s *Server) ListFinesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := fines.QueryFilter{
			PlayerID: r.URL.Query().Get("player"),
			Status:   fines.PaymentStatus(r.URL.Query().Get("status")),
		}
		if fromStr := r.URL.Query().Get("from"); fromStr != "" {
			if from, err := strconv.ParseInt(fromStr, 10, 64); err == nil {
				filter.From = from
			}
		}
		if toStr := r.URL.Query().Get("to"); toStr != "" {
			if to, err := strconv.ParseInt(toStr, 10, 64); err == nil {
				filter.To = to
			}
		}

		result, err := s.Ledger.Query(filter)
		if err != nil {
			http.Error(w, "Failed to get fines", http.StatusInternalServerError)
			log.Error("Failed to query fines", "error", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			log.Error("Failed to encode fines to JSON", "error", err)
		}
	}
}

// PayFineHandler marks a single fine as paid.
func (s *Server) PayFineHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fineID := r.URL.Query().Get("fineID")
		if fineID == "" {
			http.Error(w, "fineID is required", http.StatusBadRequest)
			return
		}
		note := r.URL.Query().Get("note")

		fine, err := s.Ledger.MarkPaid(fineID, time.Now().Unix(), note)
		if err != nil {
			switch {
			case errors.Is(err, fines.ErrNotFound):
				http.Error(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, fines.ErrAlreadyPaid):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "Failed to mark fine paid", http.StatusInternalServerError)
				log.Error("Failed to mark fine paid", "fineID", fineID, "error", err)
			}
			return
		}

		log.Info("Marked fine as paid", "fineID", fineID)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(fine); err != nil {
			log.Error("Failed to encode fine to JSON", "error", err)
		}
	}
}

func (s *Server) SummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := s.Ledger.Summary()
		if err != nil {
			http.Error(w, "Failed to get summary", http.StatusInternalServerError)
			log.Error("Failed to get ledger summary", "error", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(summary); err != nil {
			log.Error("Failed to encode summary to JSON", "error", err)
		}
	}
}

func (s *Server) ListMembersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		members, err := s.Team.GetAllMembers()
		if err != nil {
			http.Error(w, "Failed to get members", http.StatusInternalServerError)
			log.Error("Failed to get members from store", "error", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(members); err != nil {
			log.Error("Failed to write response", "error", err)
		}
	}
}

func (s *Server) ListEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := s.Team.GetAllEvents()
		if err != nil {
			http.Error(w, "Failed to get events", http.StatusInternalServerError)
			log.Error("Failed to get events from store", "error", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(events); err != nil {
			log.Error("Failed to encode events to JSON", "error", err)
		}
	}
}

func (s *Server) ListSyncRunsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		runs, err := s.Ledger.GetSyncRuns(limit)
		if err != nil {
			http.Error(w, "Failed to get sync runs", http.StatusInternalServerError)
			log.Error("Failed to get sync runs", "error", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(runs); err != nil {
			log.Error("Failed to encode sync runs to JSON", "error", err)
		}
	}
}

// ExportHandler streams the whole ledger as CSV.
func (s *Server) ExportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allFines, err := s.Ledger.Query(fines.QueryFilter{})
		if err != nil {
			http.Error(w, "Failed to export fines", http.StatusInternalServerError)
			log.Error("Failed to query fines for export", "error", err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="fines.csv"`)

		writer := csv.NewWriter(w)
		writer.Write([]string{"id", "player_id", "player_name", "event_id", "violation", "amount", "policy_version", "created_at", "status", "paid_at", "note"})
		for _, fine := range allFines {
			paidAt := ""
			if fine.PaidAt != nil {
				paidAt = strconv.FormatInt(*fine.PaidAt, 10)
			}
			writer.Write([]string{
				fine.ID,
				fine.PlayerID,
				fine.PlayerName,
				fine.EventID,
				string(fine.Kind),
				strconv.FormatInt(fine.Amount, 10),
				fine.PolicyVersion,
				strconv.FormatInt(fine.CreatedAt, 10),
				string(fine.Status),
				paidAt,
				fine.Note,
			})
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			log.Error("Failed to write CSV export", "error", err)
		}
	}
}

// ClearLedgerHandler wipes all fines and sync runs. The caller must pass
// confirm=true, an accidental GET never clears anything.
func (s *Server) ClearLedgerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("confirm") != "true" {
			http.Error(w, "Pass confirm=true to clear the ledger", http.StatusBadRequest)
			return
		}

		log.Info("Received request to clear ledger")
		if err := s.Ledger.Clear(); err != nil {
			http.Error(w, "Failed to clear ledger", http.StatusInternalServerError)
			log.Error("Failed to clear ledger", "error", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Ledger cleared!")
	}
}

// NotifyFinesHandler consumes the pubsub push for fines-created events and
// sends the Slack announcement.
func (s *Server) NotifyFinesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error("Failed to read request body", "error", err)
			http.Error(w, "Failed to read request body", http.StatusInternalServerError)
			return
		}
		log.Debug("Received notify fines message", "body", string(bodyBytes))
		// Define a small struct to decode the incoming JSON's `data` field
		var pubsubMsg struct {
			Subscription string `json:"subscription"`
			Message      struct {
				Data string `json:"data"` // base64-encoded message payload
			} `json:"message"`
		}

		// Parse the outer JSON to get `data`
		if err := json.Unmarshal(bodyBytes, &pubsubMsg); err != nil {
			log.Error("Failed to unmarshal wrapper JSON", "error", err)
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		// Decode base64 to raw MessagePack bytes
		rawData, err := base64.StdEncoding.DecodeString(pubsubMsg.Message.Data)
		if err != nil {
			log.Error("Failed to decode base64 data", "error", err)
			http.Error(w, "Invalid base64 data", http.StatusBadRequest)
			return
		}
		isDryRun := isDryRunFromContext(r)
		event := pubsub.FinesCreatedEvent{}
		if err := s.pubsub.ProcessMessage(rawData, &event); err != nil {
			http.Error(w, "Invalid message payload", http.StatusBadRequest)
			return
		}

		newFines := make([]fines.Fine, 0, len(event.FineIDs))
		for _, fineID := range event.FineIDs {
			fine, err := s.Ledger.GetFine(fineID)
			if err != nil {
				log.Warn("Fine from event not found in ledger", "fineID", fineID, "error", err)
				continue
			}
			newFines = append(newFines, *fine)
		}

		if err := s.Notifier.SendNewFines(newFines, isDryRun); err != nil {
			log.Error("Failed to notify fines", "error", err)
			http.Error(w, "Failed to notify fines", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("OK"))
	}
}

// respondWithSlackMsg is a helper to format and write a Slack message as an HTTP response.
func respondWithSlackMsg(w http.ResponseWriter, msg slack.Message) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		log.Error("Failed to encode slack message to JSON", "error", err)
	}
}

// FinesCommandHandler returns a handler for the /fines Slack command. With
// no text it answers with the ledger summary, with a player name it answers
// with that player's fines.
func (s *Server) FinesCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}
		query := r.FormValue("text")

		var msg any
		var err error
		if query == "" {
			var summary *fines.LedgerSummary
			summary, err = s.Ledger.Summary()
			if err != nil {
				http.Error(w, "Failed to get summary", http.StatusInternalServerError)
				log.Error("Failed to get ledger summary", "error", err)
				return
			}
			msg, err = s.Notifier.FormatSummaryResponse(summary)
		} else {
			log.Info("Received player fines command", "player", query)
			member, memberErr := s.Team.FindMemberByName(query)
			if memberErr != nil {
				http.Error(w, "Failed to look up player", http.StatusInternalServerError)
				log.Error("Failed to look up player", "player", query, "error", memberErr)
				return
			}
			if member == nil {
				msg, err = s.Notifier.FormatPlayerNotFoundResponse(query)
			} else {
				playerFines, queryErr := s.Ledger.Query(fines.QueryFilter{PlayerID: member.ID})
				if queryErr != nil {
					http.Error(w, "Failed to get fines", http.StatusInternalServerError)
					log.Error("Failed to query player fines", "player", query, "error", queryErr)
					return
				}
				msg, err = s.Notifier.FormatPlayerFinesResponse(member.Name, playerFines)
			}
		}

		if err != nil {
			http.Error(w, "Failed to format response", http.StatusInternalServerError)
			log.Error("Failed to format slash command response", "error", err)
			return
		}

		slackMsg, ok := msg.(slack.Message)
		if !ok {
			http.Error(w, "Invalid message format for Slack", http.StatusInternalServerError)
			log.Error("Failed to cast message to slack.Message")
			return
		}
		respondWithSlackMsg(w, slackMsg)
	}
}
