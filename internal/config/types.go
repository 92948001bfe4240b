package config

// Config holds all configuration for the application.
type Config struct {
	DBName        string
	MigrationsDir string
	Port          string
	Spond         SpondConfig
	Slack         SlackConfig
	Fines         FinesConfig
	Turso         TursoConfig
	ProjectID     string
}

type SpondConfig struct {
	Username string
	Password string
	GroupID  string
}

type SlackConfig struct {
	Token         string
	ChannelID     string
	SigningSecret string
}

type TursoConfig struct {
	PrimaryURL string
	AuthToken  string
}

// FinesConfig carries the fine amounts and lateness rule that seed the active
// fine policy. Amounts are whole currency units (kr for the original club).
type FinesConfig struct {
	MissingTraining    int64
	MissingMatch       int64
	LateResponse       int64
	LateThresholdHours int
	LateBasis          string
}
