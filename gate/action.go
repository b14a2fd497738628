package gate

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionView   Action = "view"
	ActionList   Action = "list"
	ActionSave   Action = "save"
	ActionDelete Action = "delete"
	ActionPrint  Action = "print"
	ActionSend   Action = "send"
	ActionReset  Action = "reset"
	ActionUpdate Action = "update"
)
