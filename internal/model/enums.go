package model

type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "not_started"
	SessionStatusInQueue    SessionStatus = "in_queue"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

type Severity string

const (
	SeverityMinimal  Severity = "minimal"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// SeverityForScore maps a GAD-7 total (0..21) to its severity band.
func SeverityForScore(total int) Severity {
	switch {
	case total <= 4:
		return SeverityMinimal
	case total <= 9:
		return SeverityMild
	case total <= 14:
		return SeverityModerate
	default:
		return SeveritySevere
	}
}

type TherapyType string

const (
	TherapyCBT         TherapyType = "CBT"
	TherapyACT         TherapyType = "ACT"
	TherapyMindfulness TherapyType = "Mindfulness"
	TherapyEMDR        TherapyType = "EMDR"
	TherapyDBT         TherapyType = "DBT"
)

var TherapyTypes = []string{
	string(TherapyCBT),
	string(TherapyACT),
	string(TherapyMindfulness),
	string(TherapyEMDR),
	string(TherapyDBT),
}

// Profile vocabularies
var (
	Genders           = []string{"male", "female"}
	SleepPatterns     = []string{"regular", "irregular", "little_sleep", "too_much_sleep", "insomnia"}
	YesNo             = []string{"yes", "no"}
	DreamRecallLevels = []string{"don't_remember", "rarely", "sometimes", "often", "always", "don't_dream"}
)
