package ticketops

// CloseRequest closes a ticket. UserID is the operator or automation owning
// the ticket; it becomes the NPS addressee when RequestNPS is set.
type CloseRequest struct {
	UserID     *int64 `json:"userId"`
	RequestNPS bool   `json:"requestNps"`
}

// NPSRequest records the customer's post-close score.
type NPSRequest struct {
	Score *int `json:"score" binding:"required"`
}

// ReassignRequest moves a ticket to another queue. A null queueId leaves the
// ticket unassigned.
type ReassignRequest struct {
	QueueID *int64 `json:"queueId"`
}
