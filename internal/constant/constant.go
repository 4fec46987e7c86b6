package constant

// Thread roles. Each logical session owns at most one active thread per role.
const (
	ThreadRoleRefiner   = "refiner"
	ThreadRoleAssistant = "assistant"
)

// Thread lifecycle statuses.
const (
	ThreadStatusActive  = "active"
	ThreadStatusReset   = "reset"
	ThreadStatusExpired = "expired"
)

// Message roles as exchanged with completion providers.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"
)

// DefaultNamespace is the shared vector partition for globally-ingested
// live sources. Session-scoped entries live under the session id instead.
const DefaultNamespace = "default"

// Live source types.
const (
	LiveSourceTypeFeed = "feed"
	LiveSourceTypePage = "page"
	LiveSourceTypeAPI  = "api"
)

// Live source statuses.
const (
	LiveSourceStatusActive  = "active"
	LiveSourceStatusPaused  = "paused"
	LiveSourceStatusError   = "error"
	LiveSourceStatusStopped = "stopped"
)

// Rolling window bounds for live sources.
const (
	LiveSourceMinEntries     = 1
	LiveSourceMaxEntries     = 10000
	LiveSourceDefaultEntries = 100
)
