package dto

// OperationLogQuery mirrors supported log filters. Times are RFC3339.
type OperationLogQuery struct {
	UserID        string `form:"user_id"`
	OperationType string `form:"operation_type"`
	ObjectID      string `form:"object_id"`
	From          string `form:"from"`
	To            string `form:"to"`
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
	Format        string `form:"format"`
}
