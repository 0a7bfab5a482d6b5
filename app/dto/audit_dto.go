package dto

type ListAuditQuery struct {
	Action   string `query:"action" validate:"omitempty,oneof=tag_created tag_updated tag_deleted segments_setup timeline_exported"`
	TargetID int64  `query:"targetId" validate:"omitempty,min=1"`
	Failed   bool   `query:"failed"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=500"`
	Offset   int    `query:"offset" validate:"omitempty,min=0"`
}

type AuditLogItem struct {
	ID           uint    `json:"id"`
	Operator     string  `json:"operator"`
	Action       string  `json:"action"`
	TargetIDs    []int64 `json:"targetIds"`
	Description  *string `json:"description,omitempty"`
	IPAddress    *string `json:"ipAddress,omitempty"`
	RequestID    *string `json:"requestId,omitempty"`
	Success      bool    `json:"success"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
	CreatedAt    string  `json:"createdAt"`
}

type ListAuditResponse struct {
	Items  []AuditLogItem `json:"items"`
	Count  int64          `json:"count"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
