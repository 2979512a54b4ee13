package hooks

// ReplyRequest is an asynchronous answer from an automation backend.
type ReplyRequest struct {
	CompanyID              int64  `json:"companyId" binding:"required"`
	TicketID               int64  `json:"ticketId" binding:"required"`
	Content                string `json:"content"`
	PendingVariable        string `json:"pendingVariable"`
	VariableTimeoutSeconds int    `json:"variableTimeoutSeconds"`
}
