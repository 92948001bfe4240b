package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/linusjb/boedekassen/internal/config"
	"github.com/linusjb/boedekassen/internal/database"
	"github.com/linusjb/boedekassen/internal/fines"
	"github.com/linusjb/boedekassen/internal/metrics"
	"github.com/linusjb/boedekassen/internal/notifier"
	"github.com/linusjb/boedekassen/internal/pubsub"
	"github.com/linusjb/boedekassen/internal/reconcile"
	"github.com/linusjb/boedekassen/internal/spond"
	"github.com/linusjb/boedekassen/internal/syncer"
	"github.com/linusjb/boedekassen/internal/team"
)

const testSlackSigningSecret = "test-signing-secret"

// setupTestServer initializes a new server with a test database and mock clients.
func setupTestServer(t *testing.T, notif notifier.Notifier, sync syncer.Syncer, slackSigningSecret string) *Server {
	t.Helper()

	db, dbTeardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)
	t.Cleanup(dbTeardown)

	ledger := fines.New(db)
	teamStore := team.New(db)
	cfg := config.Config{Slack: config.SlackConfig{SigningSecret: slackSigningSecret}}

	reg := prometheus.NewRegistry()
	metricsSvc := metrics.NewService(reg)
	metricsHandler := metrics.NewMetricsHandler(reg)
	pubsubC := pubsub.NewMock("TEST")

	return NewServer(ledger, teamStore, metricsSvc, metricsHandler, cfg, notif, sync, pubsubC)
}

// createSlackCommandRequest creates an http.Request suitable for testing Slack slash commands,
// including the necessary signature and timestamp headers for verification.
func createSlackCommandRequest(t *testing.T, targetURL string, form url.Values, signingSecret string) *http.Request {
	t.Helper()

	body := strings.NewReader(form.Encode())
	req, err := http.NewRequest("POST", targetURL, body)
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	timestamp := time.Now().Unix()
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(timestamp, 10))

	bodyBytes, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	baseString := fmt.Sprintf("v0:%d:%s", timestamp, string(bodyBytes))
	h := hmac.New(sha256.New, []byte(signingSecret))
	h.Write([]byte(baseString))
	signature := hex.EncodeToString(h.Sum(nil))

	req.Header.Set("X-Slack-Signature", "v0="+signature)

	return req
}

func seedFine(t *testing.T, server *Server, id, playerID string, kind fines.ViolationKind, amount int64) {
	t.Helper()
	_, err := server.Ledger.UpsertFine(fines.Fine{
		ID:            id,
		PlayerID:      playerID,
		PlayerName:    "Jonas Holm",
		EventID:       "e-" + id,
		Kind:          kind,
		Amount:        amount,
		PolicyVersion: "pol-abc",
		CreatedAt:     1000,
	})
	require.NoError(t, err)
}

func TestHealthCheckHandler(t *testing.T) {
	server := setupTestServer(t, notifier.NewMock(), syncer.NewMockSyncer(), "")

	req, err := http.NewRequest("GET", "/health", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "handler returned wrong status code")
	assert.Equal(t, "OK!", rr.Body.String(), "handler returned unexpected body")
}

func TestSyncHandler(t *testing.T) {
	mockSyncer := syncer.NewMockSyncer()
	mockSyncer.SyncFunc = func(daysBack int, dryRun bool) (*reconcile.Result, error) {
		return &reconcile.Result{CreatedTotal: 2, Skipped: 1}, nil
	}
	server := setupTestServer(t, notifier.NewMock(), mockSyncer, "")

	req, err := http.NewRequest("GET", "/sync?days=7&dry_run=true", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, mockSyncer.SyncCalls, 1)
	assert.Equal(t, 7, mockSyncer.SyncCalls[0].DaysBack)
	assert.True(t, mockSyncer.SyncCalls[0].DryRun)

	var result reconcile.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, 2, result.CreatedTotal)
}

func TestSyncHandler_CorruptionReturnsConflict(t *testing.T) {
	mockSyncer := syncer.NewMockSyncer()
	mockSyncer.SyncFunc = func(daysBack int, dryRun bool) (*reconcile.Result, error) {
		return nil, fmt.Errorf("sync aborted: %w", fines.ErrLedgerCorruption)
	}
	server := setupTestServer(t, notifier.NewMock(), mockSyncer, "")

	req, err := http.NewRequest("GET", "/sync", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestListFinesHandler(t *testing.T) {
	server := setupTestServer(t, notifier.NewMock(), syncer.NewMockSyncer(), "")
	seedFine(t, server, "f1", "p1", fines.ViolationMissingTraining, 50)
	seedFine(t, server, "f2", "p2", fines.ViolationMissingMatch, 100)

	req, err := http.NewRequest("GET", "/fines?player=p1", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var result []fines.Fine
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.Len(t, result, 1)
	assert.Equal(t, "f1", result[0].ID)
}

func TestPayFineHandler(t *testing.T) {
	server := setupTestServer(t, notifier.NewMock(), syncer.NewMockSyncer(), "")
	seedFine(t, server, "f1", "p1", fines.ViolationMissingTraining, 50)

	t.Run("pays an unpaid fine", func(t *testing.T) {
		req, err := http.NewRequest("POST", "/fines/pay?fineID=f1&note=mobilepay", nil)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var fine fines.Fine
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fine))
		assert.Equal(t, fines.StatusPaid, fine.Status)
		assert.Equal(t, "mobilepay", fine.Note)
	})

	t.Run("paying twice conflicts", func(t *testing.T) {
		req, err := http.NewRequest("POST", "/fines/pay?fineID=f1", nil)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("unknown fine is not found", func(t *testing.T) {
		req, err := http.NewRequest("POST", "/fines/pay?fineID=nope", nil)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("missing fineID is a bad request", func(t *testing.T) {
		req, err := http.NewRequest("POST", "/fines/pay", nil)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSummaryHandler(t *testing.T) {
	server := setupTestServer(t, notifier.NewMock(), syncer.NewMockSyncer(), "")
	seedFine(t, server, "f1", "p1", fines.ViolationMissingTraining, 50)

	req, err := http.NewRequest("GET", "/summary", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var summary fines.LedgerSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalFines)
	assert.Equal(t, int64(50), summary.TotalUnpaid)
}

func TestListMembersHandler(t *testing.T) {
	server := setupTestServer(t, notifier.NewMock(), syncer.NewMockSyncer(), "")
	require.NoError(t, server.Team.UpsertMembers([]spond.Member{
		{ID: "p1", Name: "Jonas Holm"},
		{ID: "p2", Name: "Mads Krogh"},
	}))

	req, err := http.NewRequest("GET", "/members", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Jonas Holm")
	assert.Contains(t, rr.Body.String(), "p2")
}

func TestListEventsHandler(t *testing.T) {
	server := setupTestServer(t, notifier.NewMock(), syncer.NewMockSyncer(), "")
	require.NoError(t, server.Team.UpsertEvents([]spond.Event{
		{ID: "e1", Heading: "Tirsdagstræning", Kind: spond.EventKindTraining, Start: 2000, InvitedAt: 1000, GroupID: "g1"},
	}))

	req, err := http.NewRequest("GET", "/events", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Tirsdagstræning")
}

func TestExportHandler(t *testing.T) {
	server := setupTestServer(t, notifier.NewMock(), syncer.NewMockSyncer(), "")
	seedFine(t, server, "f1", "p1", fines.ViolationMissingTraining, 50)

	req, err := http.NewRequest("GET", "/export", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "player_id")
	assert.Contains(t, lines[1], "f1")
	assert.Contains(t, lines[1], "missing_training")
}

func TestClearLedgerHandler(t *testing.T) {
	server := setupTestServer(t, notifier.NewMock(), syncer.NewMockSyncer(), "")
	seedFine(t, server, "f1", "p1", fines.ViolationMissingTraining, 50)

	t.Run("refuses without confirmation", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/clear", nil)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		stored, err := server.Ledger.Query(fines.QueryFilter{})
		require.NoError(t, err)
		assert.Len(t, stored, 1)
	})

	t.Run("clears when confirmed", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/clear?confirm=true", nil)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		stored, err := server.Ledger.Query(fines.QueryFilter{})
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
}

func TestNotifyFinesHandler(t *testing.T) {
	mockNotifier := notifier.NewMock()
	server := setupTestServer(t, mockNotifier, syncer.NewMockSyncer(), "")
	seedFine(t, server, "f1", "p1", fines.ViolationMissingTraining, 50)

	payload, err := msgpack.Marshal(pubsub.FinesCreatedEvent{FineIDs: []string{"f1"}, CreatedTotal: 1})
	require.NoError(t, err)
	wrapper := map[string]any{
		"subscription": "projects/test/subscriptions/notify-fines",
		"message":      map[string]string{"data": base64.StdEncoding.EncodeToString(payload)},
	}
	body, err := json.Marshal(wrapper)
	require.NoError(t, err)

	req, err := http.NewRequest("POST", "/notify-fines", bytes.NewReader(body))
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, mockNotifier.SendNewFinesCalls, 1)
	require.Len(t, mockNotifier.SendNewFinesCalls[0], 1)
	assert.Equal(t, "f1", mockNotifier.SendNewFinesCalls[0][0].ID)
}

func TestNotifyFinesHandler_InvalidJSON(t *testing.T) {
	server := setupTestServer(t, notifier.NewMock(), syncer.NewMockSyncer(), "")

	req, err := http.NewRequest("POST", "/notify-fines", strings.NewReader("not json"))
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFinesCommandHandler(t *testing.T) {
	mockNotifier := notifier.NewMock()
	mockNotifier.FormatSummaryResponseFunc = func(summary *fines.LedgerSummary) (any, error) {
		return slack.Message{}, nil
	}
	mockNotifier.FormatPlayerFinesResponseFunc = func(playerName string, playerFines []fines.Fine) (any, error) {
		return slack.Message{}, nil
	}
	mockNotifier.FormatPlayerNotFoundResponseFunc = func(query string) (any, error) {
		return slack.Message{}, nil
	}
	server := setupTestServer(t, mockNotifier, syncer.NewMockSyncer(), testSlackSigningSecret)

	require.NoError(t, server.Team.UpsertMembers([]spond.Member{{ID: "p1", Name: "Jonas Holm"}}))
	seedFine(t, server, "f1", "p1", fines.ViolationMissingTraining, 50)

	t.Run("empty text answers with the summary", func(t *testing.T) {
		req := createSlackCommandRequest(t, "/slack/command/fines", url.Values{}, testSlackSigningSecret)

		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("player name answers with player fines", func(t *testing.T) {
		form := url.Values{}
		form.Set("text", "Jonas Holm")
		req := createSlackCommandRequest(t, "/slack/command/fines", form, testSlackSigningSecret)

		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("handles not found player", func(t *testing.T) {
		form := url.Values{}
		form.Set("text", "Unknown")
		req := createSlackCommandRequest(t, "/slack/command/fines", form, testSlackSigningSecret)

		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("rejects request with invalid signature", func(t *testing.T) {
		form := url.Values{}
		form.Set("text", "Jonas Holm")
		req := createSlackCommandRequest(t, "/slack/command/fines", form, testSlackSigningSecret)

		// Tamper with the signature to make it invalid
		req.Header.Set("X-Slack-Signature", "v0=invalid-signature")

		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejects request with missing signature", func(t *testing.T) {
		form := url.Values{}
		form.Set("text", "Jonas Holm")
		req := createSlackCommandRequest(t, "/slack/command/fines", form, testSlackSigningSecret)

		req.Header.Del("X-Slack-Signature")

		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejects request with outdated timestamp", func(t *testing.T) {
		form := url.Values{}
		form.Set("text", "Jonas Holm")
		req := createSlackCommandRequest(t, "/slack/command/fines", form, testSlackSigningSecret)

		// Set an outdated timestamp (e.g., 6 minutes ago)
		req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Add(-6*time.Minute).Unix(), 10))

		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
