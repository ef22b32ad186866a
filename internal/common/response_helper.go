package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResponseSuccess writes a 200 success envelope.
func ResponseSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse(data))
}

// ResponseCreated writes a 201 success envelope.
func ResponseCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, SuccessResponse(data))
}

// ResponseNoContent writes a bare 204.
func ResponseNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// ResponseList writes a paginated list envelope.
func ResponseList(c *gin.Context, items any, total int64, req *PaginationRequest) {
	if req == nil {
		defaultReq := DefaultPagination()
		req = &defaultReq
	}

	pageSize := req.GetPageSize()
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	response := ListResponse{
		Items: items,
		Pagination: PaginationMeta{
			Page:       req.Page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	}

	c.JSON(http.StatusOK, SuccessResponse(response))
}

// ResponseError maps a business code to an HTTP status and writes the
// error envelope.
func ResponseError(c *gin.Context, code int, message string) {
	if message == "" {
		message = GetErrorMessage(code)
	}

	httpStatus := http.StatusOK
	switch code {
	case CodeUnauthorized:
		httpStatus = http.StatusUnauthorized
	case CodeForbidden:
		httpStatus = http.StatusForbidden
	case CodeNotFound, CodeTenantNotFound, CodeUserNotFound, CodeMembershipNotFound:
		httpStatus = http.StatusNotFound
	case CodeInvalidRequest, CodeConflict, CodeOrgNotEmpty, CodeInvalidCredentials:
		httpStatus = http.StatusBadRequest
	case CodeInternalError:
		httpStatus = http.StatusInternalServerError
	}

	c.JSON(httpStatus, ErrorResponse(code, message))
}

// ResponseBusinessError writes a BusinessError.
func ResponseBusinessError(c *gin.Context, err *BusinessError) {
	ResponseError(c, err.Code, err.Message)
}

// AbortWithError writes the error envelope and aborts the handler chain.
func AbortWithError(c *gin.Context, code int, message string) {
	ResponseError(c, code, message)
	c.Abort()
}

// ResponseBadRequest writes a parameter validation failure.
func ResponseBadRequest(c *gin.Context, message string) {
	ResponseError(c, CodeInvalidRequest, message)
}

// ResponseUnauthorized writes an authentication failure.
func ResponseUnauthorized(c *gin.Context, message string) {
	ResponseError(c, CodeUnauthorized, message)
}

// ResponseForbidden writes a permission failure.
func ResponseForbidden(c *gin.Context, message string) {
	ResponseError(c, CodeForbidden, message)
}

// ResponseNotFound writes a missing-resource failure.
func ResponseNotFound(c *gin.Context, message string) {
	ResponseError(c, CodeNotFound, message)
}

// ResponseServerError writes a generic 500. Internal detail stays in the
// server logs, never in the response body.
func ResponseServerError(c *gin.Context, message string) {
	ResponseError(c, CodeInternalError, message)
}
