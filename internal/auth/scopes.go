package auth

// OAuth scopes recognised by the backend.
const (
	ScopeSnapshotsWrite = "snapshots:write"
	ScopeSnapshotsRead  = "snapshots:read"
)
