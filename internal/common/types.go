package common

// PaginationRequest carries standard list-endpoint paging parameters.
type PaginationRequest struct {
	Page     int `json:"page" form:"page" binding:"omitempty,min=1"`
	PageSize int `json:"page_size" form:"page_size" binding:"omitempty,min=1"`
}

// DefaultPagination returns the default paging parameters.
func DefaultPagination() PaginationRequest {
	return PaginationRequest{Page: 1, PageSize: 20}
}

// GetOffset computes the query offset.
func (p PaginationRequest) GetOffset() int {
	if p.Page < 1 {
		p.Page = 1
	}
	return (p.Page - 1) * p.GetPageSize()
}

// GetPageSize returns the page size, clamped to [1, 100].
func (p PaginationRequest) GetPageSize() int {
	if p.PageSize < 1 {
		return 20
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// APIResponse is the uniform response envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// SuccessResponse wraps data in a success envelope.
func SuccessResponse(data any) APIResponse {
	return APIResponse{Success: true, Data: data, Code: 0}
}

// ErrorResponse builds an error envelope.
func ErrorResponse(code int, message string) APIResponse {
	return APIResponse{Success: false, Message: message, Code: code}
}

// PaginationMeta describes one page of a list response.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ListResponse is a paginated list envelope.
type ListResponse struct {
	Items      any            `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// Business status codes.
const (
	CodeSuccess = 0

	// Generic (1000-1999)
	CodeInvalidRequest = 1000
	CodeUnauthorized   = 1001
	CodeForbidden      = 1002
	CodeNotFound       = 1003
	CodeConflict       = 1004
	CodeInternalError  = 1005

	// Tenancy (2000-2099)
	CodeTenantNotFound     = 2000
	CodeUserNotFound       = 2010
	CodeInvalidCredentials = 2012
	CodeMembershipNotFound = 2020
	CodeOrgNotEmpty        = 2030
)

// ErrorMessages maps business codes to default client messages.
var ErrorMessages = map[int]string{
	CodeSuccess:        "ok",
	CodeInvalidRequest: "invalid request",
	CodeUnauthorized:   "authentication required",
	CodeForbidden:      "access denied",
	CodeNotFound:       "resource not found",
	CodeConflict:       "resource conflict",
	CodeInternalError:  "internal server error",

	CodeTenantNotFound:     "organization not found",
	CodeUserNotFound:       "user not found",
	CodeInvalidCredentials: "invalid email or password",
	CodeMembershipNotFound: "membership not found",
	CodeOrgNotEmpty:        "organization still has members or courses",
}

// GetErrorMessage returns the default message for a business code.
func GetErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "unknown error"
}

// BusinessError is an error carrying a business status code.
type BusinessError struct {
	Code    int
	Message string
}

func (e *BusinessError) Error() string {
	return e.Message
}

// NewBusinessError creates a BusinessError, falling back to the default
// message for the code when message is empty.
func NewBusinessError(code int, message string) *BusinessError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return &BusinessError{Code: code, Message: message}
}
