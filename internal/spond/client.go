package spond

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// matchKeywords are the heading substrings that mark an event as a match
// rather than a training session. Mixed Danish/English, same as the club uses.
var matchKeywords = []string{"match", "kamp", "spill", "game"}

// APIClient is a Spond API client that implements the Client interface.
type APIClient struct {
	httpClient *http.Client
	BaseURL    string
	username   string
	password   string
	authToken  string
}

// NewClient creates a new Spond client. Login is deferred until the first call.
func NewClient(username, password string) Client {
	return &APIClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		BaseURL:    "https://api.spond.com/core/v1",
		username:   username,
		password:   password,
	}
}

// Ensure APIClient implements the Client interface.
var _ Client = (*APIClient)(nil)

// login authenticates against the Spond API and caches the login token.
func (c *APIClient) login() error {
	if c.authToken != "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"email":    c.username,
		"password": c.password,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), "POST", c.BaseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error("Received non-OK HTTP status from Spond login", "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("login failed with HTTP status: %d", resp.StatusCode)
	}

	var login spondLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	c.authToken = login.LoginToken
	log.Debug("Authenticated against Spond API")
	return nil
}

func (c *APIClient) get(path string, query url.Values, v any) error {
	if err := c.login(); err != nil {
		return err
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(context.Background(), "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	log.Debug("Requesting from Spond API", "url", u)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error("Received non-OK HTTP status from Spond API", "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("received non-OK HTTP status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetEvents fetches events for the group in the given window and normalizes
// them into events plus one attendance fact per (event, member) response.
func (c *APIClient) GetEvents(params *SearchEventsParams) ([]Event, []AttendanceFact, error) {
	maxEvents := params.MaxEvents
	if maxEvents == 0 {
		maxEvents = 200
	}

	query := url.Values{}
	query.Set("groupId", params.GroupID)
	query.Set("minStartTimestamp", params.MinStart.UTC().Format(time.RFC3339))
	query.Set("maxStartTimestamp", params.MaxStart.UTC().Format(time.RFC3339))
	query.Set("max", strconv.Itoa(maxEvents))
	query.Set("includeHidden", "true")

	var raw []spondEventResponse
	if err := c.get("/sponds", query, &raw); err != nil {
		return nil, nil, fmt.Errorf("error fetching events from spond api: %w", err)
	}

	var events []Event
	var facts []AttendanceFact
	for _, r := range raw {
		event, eventFacts, err := normalizeEvent(r, params.GroupID)
		if err != nil {
			log.Warn("Skipping event that failed to normalize", "eventID", r.ID, "error", err)
			continue
		}
		events = append(events, event)
		facts = append(facts, eventFacts...)
	}

	log.Info("Fetched events from Spond", "events", len(events), "facts", len(facts))
	return events, facts, nil
}

// GetGroupMembers fetches the members of the configured group.
func (c *APIClient) GetGroupMembers(groupID string) ([]Member, error) {
	var groups []spondGroupResponse
	if err := c.get("/groups", nil, &groups); err != nil {
		return nil, fmt.Errorf("error fetching groups from spond api: %w", err)
	}

	for _, group := range groups {
		if group.ID != groupID {
			continue
		}
		members := make([]Member, 0, len(group.Members))
		for _, m := range group.Members {
			members = append(members, Member{
				ID:             m.ID,
				Name:           strings.TrimSpace(m.FirstName + " " + m.LastName),
				ProfilePicture: profilePicture(m),
			})
		}
		log.Info("Fetched group members from Spond", "count", len(members))
		return members, nil
	}
	return nil, fmt.Errorf("group %s not found", groupID)
}

// profilePicture picks the image URL from either of its two possible
// locations and strips query parameters that break rendering.
func profilePicture(m spondMemberResponse) string {
	pic := m.ImageURL
	if m.Profile != nil && m.Profile.ImageURL != "" {
		pic = m.Profile.ImageURL
	}
	if i := strings.IndexByte(pic, '?'); i >= 0 {
		pic = pic[:i]
	}
	return pic
}

// ClassifyEventKind decides training vs match from the event heading.
func ClassifyEventKind(heading string) EventKind {
	lower := strings.ToLower(heading)
	for _, keyword := range matchKeywords {
		if strings.Contains(lower, keyword) {
			return EventKindMatch
		}
	}
	return EventKindTraining
}

func normalizeEvent(r spondEventResponse, groupID string) (Event, []AttendanceFact, error) {
	start, err := parseSpondTime(r.StartTimestamp)
	if err != nil {
		return Event{}, nil, fmt.Errorf("failed to parse start time: %w", err)
	}

	// The invitation time falls back to the event start when Spond omits it.
	invitedAt := start
	if r.CreatedTime != "" {
		invitedAt, err = parseSpondTime(r.CreatedTime)
		if err != nil {
			return Event{}, nil, fmt.Errorf("failed to parse created time: %w", err)
		}
	}

	event := Event{
		ID:        r.ID,
		Heading:   r.Heading,
		Kind:      ClassifyEventKind(r.Heading),
		Start:     start,
		InvitedAt: invitedAt,
		GroupID:   groupID,
	}

	var facts []AttendanceFact
	appendFacts := func(ids []string, response ResponseKind) {
		for _, playerID := range ids {
			fact := AttendanceFact{
				EventID:  r.ID,
				PlayerID: playerID,
				Response: response,
			}
			if raw, ok := r.Responses.RespondedTimes[playerID]; ok {
				if ts, err := parseSpondTime(raw); err == nil {
					fact.RespondedAt = &ts
				} else {
					log.Warn("Failed to parse response timestamp", "eventID", r.ID, "playerID", playerID, "raw", raw)
				}
			}
			facts = append(facts, fact)
		}
	}
	appendFacts(r.Responses.AcceptedIDs, ResponseAccepted)
	appendFacts(r.Responses.DeclinedIDs, ResponseDeclined)
	appendFacts(r.Responses.UnansweredIDs, ResponseUnanswered)
	appendFacts(r.Responses.WaitlistedIDs, ResponseWaitlisted)

	return event, facts, nil
}

func parseSpondTime(raw string) (int64, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
