package models

// Command statuses. Transitions are one-directional:
// pending -> processing -> completed|failed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Command kinds. Only KindCommand rows reach the actuator;
// KindConversation rows complete with no physical effect.
const (
	KindCommand      = "command"
	KindConversation = "conversation"
)

// Robot actions. The enumeration is shared with the poller; a value
// outside this range is a defect, not something to ignore at runtime.
const (
	ActionNone     = 0
	ActionForward  = 1
	ActionBackward = 2
	ActionLeft     = 3
	ActionRight    = 4
)

var actionNames = map[int]string{
	ActionNone:     "none",
	ActionForward:  "forward",
	ActionBackward: "backward",
	ActionLeft:     "turn_left",
	ActionRight:    "turn_right",
}

// ActionName returns the canonical name for an action, or "" if the
// value is outside the enumeration.
func ActionName(action int) string {
	return actionNames[action]
}

// ValidAction reports whether action is inside the enumeration.
func ValidAction(action int) bool {
	_, ok := actionNames[action]
	return ok
}

// TerminalStatus reports whether status is completed or failed.
func TerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Default limits.
const (
	DefaultMaxRequestBodyBytes = 1 << 20  // 1 MiB for JSON bodies
	DefaultMaxAudioBodyBytes   = 16 << 20 // 16 MiB for audio uploads
	DefaultHistoryLimit        = 50
	MaxHistoryLimit            = 500
	DefaultClaimLimit          = 10
	MaxClaimLimit              = 100
	DefaultSSEChannelBuffer    = 256
)
