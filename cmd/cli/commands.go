package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	syncDays   int
	syncDryRun bool
	finePlayer string
	fineStatus string
	payFineID  string
	payNote    string
)

func init() {
	syncCmd.Flags().IntVar(&syncDays, "days", 30, "How many days back to reconcile")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Compute fines without persisting them")
	finesCmd.Flags().StringVar(&finePlayer, "player", "", "Filter by player id")
	finesCmd.Flags().StringVar(&fineStatus, "status", "", "Filter by payment status (unpaid|paid)")
	payCmd.Flags().StringVar(&payFineID, "fine", "", "The id of the fine to mark paid")
	payCmd.Flags().StringVar(&payNote, "note", "", "Optional payment note")
	payCmd.MarkFlagRequired("fine")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(finesCmd)
	rootCmd.AddCommand(payCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(syncsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(metricsCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/health")
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Trigger a reconciliation pass against the attendance source",
	RunE: func(cmd *cobra.Command, args []string) error {
		params := url.Values{}
		params.Set("days", fmt.Sprintf("%d", syncDays))
		if syncDryRun {
			params.Set("dry_run", "true")
		}
		return performGetRequest("/sync?" + params.Encode())
	},
}

var finesCmd = &cobra.Command{
	Use:   "fines",
	Short: "List fines, optionally filtered by player and status",
	RunE: func(cmd *cobra.Command, args []string) error {
		params := url.Values{}
		if finePlayer != "" {
			params.Set("player", finePlayer)
		}
		if fineStatus != "" {
			params.Set("status", fineStatus)
		}
		endpoint := "/fines"
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}
		return performGetRequest(endpoint)
	},
}

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Mark a fine as paid",
	RunE: func(cmd *cobra.Command, args []string) error {
		params := url.Values{}
		params.Set("fineID", payFineID)
		if payNote != "" {
			params.Set("note", payNote)
		}
		return performPostRequest("/fines/pay?" + params.Encode())
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the ledger summary with per-player totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/summary")
	},
}

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "List the known team members",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/members")
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the ingested events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/events")
	},
}

var syncsCmd = &cobra.Command{
	Use:   "syncs",
	Short: "List recent sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/syncs")
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the fine ledger as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/export")
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all fines and sync runs (irreversible)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/clear?confirm=true")
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/metrics")
	},
}

func performGetRequest(endpoint string) error {
	url := host + endpoint
	fmt.Printf("Making request to %s\n", url)

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func performPostRequest(endpoint string) error {
	url := host + endpoint
	fmt.Printf("Making request to %s\n", url)

	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(body))

	return nil
}
