package domain

// Generation is a single persisted, successfully validated UI generation.
type Generation struct {
	PK        string
	SK        string
	SessionID string
	Query     string
	Content   string
	Attempts  int
	Status    string
	TTL       int64
}

// SessionMeta stores aggregate per-session state.
type SessionMeta struct {
	PK           string
	SK           string
	SessionID    string
	LastActivity string
	Generations  int
	TTL          int64
}
