package domain

// ResourceType identifies the Microsoft 365 service a Graph call targets.
type ResourceType string

const (
	// ResourceProfile is the signed-in user's profile (/me).
	ResourceProfile ResourceType = "profile"
	// ResourceMail is Outlook mail.
	ResourceMail ResourceType = "mail"
	// ResourceCalendar is Outlook calendar.
	ResourceCalendar ResourceType = "calendar"
	// ResourceFiles is OneDrive.
	ResourceFiles ResourceType = "files"
	// ResourceSharePoint is SharePoint sites and libraries.
	ResourceSharePoint ResourceType = "sharepoint"
)

// SensitiveOp describes a Graph call that must leave an audit trail
// (deletes, sends, batch operations).
type SensitiveOp struct {
	// Resource is the service being touched.
	Resource ResourceType
	// Action is a short verb such as "send" or "delete".
	Action string
	// Target identifies the object acted on (message id, item id).
	Target string
	// Detail carries extra non-secret context. It is redacted before writing.
	Detail map[string]any
}
