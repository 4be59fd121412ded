package config

// Sync mode names accepted in the users section.
const (
	ModeLatest = "latest"
	ModeFull   = "full"
)

// ValidPriorities lists the notification priorities ntfy accepts.
var ValidPriorities = []string{"min", "low", "default", "high", "max", "urgent"}

func validPriority(p string) bool {
	for _, v := range ValidPriorities {
		if p == v {
			return true
		}
	}
	return false
}
