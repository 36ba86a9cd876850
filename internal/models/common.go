package models

// APIRequest is the common request structure for all API endpoints.
// Routing happens via the "actions" field in the JSON body.
type APIRequest struct {
	Actions string `json:"actions"`
}

// APIResponse is the standard admin API response envelope.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

// PaginatedResponse wraps list results with pagination info.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}
