package spond

import "time"

// EventKind classifies an event as a training session or a match.
type EventKind string

const (
	EventKindTraining EventKind = "TRAINING"
	EventKindMatch    EventKind = "MATCH"
)

// ResponseKind is a member's recorded answer to an event invitation.
type ResponseKind string

const (
	ResponseAccepted   ResponseKind = "ACCEPTED"
	ResponseDeclined   ResponseKind = "DECLINED"
	ResponseUnanswered ResponseKind = "UNANSWERED"
	ResponseWaitlisted ResponseKind = "WAITLISTED"
)

// Event is a normalized team event. Events are immutable once ingested,
// repeated syncs re-fetch but never re-create them.
type Event struct {
	ID        string
	Heading   string
	Kind      EventKind
	Start     int64
	InvitedAt int64
	GroupID   string
}

// AttendanceFact is one member's response to one event. Facts are transient
// inputs to reconciliation and are never persisted on their own.
type AttendanceFact struct {
	EventID     string
	PlayerID    string
	Response    ResponseKind
	RespondedAt *int64 // Unix timestamp, nil when the member never answered
}

// Member represents a team member in the Spond group.
type Member struct {
	ID             string
	Name           string
	ProfilePicture string
}

// SearchEventsParams defines the parameters for fetching events.
type SearchEventsParams struct {
	GroupID   string
	MinStart  time.Time
	MaxStart  time.Time
	MaxEvents int
}

// spondLoginResponse defines the structure of the Spond login response.
type spondLoginResponse struct {
	LoginToken string `json:"loginToken"`
}

// spondEventResponse defines the JSON shape of a single event from the Spond API.
type spondEventResponse struct {
	ID             string         `json:"id"`
	Heading        string         `json:"heading"`
	StartTimestamp string         `json:"startTimestamp"`
	CreatedTime    string         `json:"createdTime"`
	Responses      spondResponses `json:"responses"`
}

// spondResponses groups member ids by their answer. RespondedTimes is only
// present for members that actively answered.
type spondResponses struct {
	AcceptedIDs    []string          `json:"acceptedIds"`
	DeclinedIDs    []string          `json:"declinedIds"`
	UnansweredIDs  []string          `json:"unansweredIds"`
	WaitlistedIDs  []string          `json:"waitlistedIds"`
	RespondedTimes map[string]string `json:"respondedTimes"`
}

// spondGroupResponse defines the JSON shape of a group with its members.
type spondGroupResponse struct {
	ID      string                `json:"id"`
	Name    string                `json:"name"`
	Members []spondMemberResponse `json:"members"`
}

type spondMemberResponse struct {
	ID        string        `json:"id"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Profile   *spondProfile `json:"profile"`
	ImageURL  string        `json:"imageUrl"`
}

type spondProfile struct {
	ImageURL string `json:"imageUrl"`
}
