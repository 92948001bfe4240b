package spond

// Client defines the interface for the Spond attendance source.
// The adapter delivers a complete, de-duplicated set of events and facts for
// the requested window; retry and pagination concerns stay on this side.
type Client interface {
	GetEvents(params *SearchEventsParams) ([]Event, []AttendanceFact, error)
	GetGroupMembers(groupID string) ([]Member, error)
}
