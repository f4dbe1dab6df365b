// Package mcp exposes the vector search over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeNotInitialized indicates the index is not open yet.
	ErrCodeNotInitialized = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeStorage indicates the vector store could not serve the request.
	ErrCodeStorage = -32004

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrResourceNotFound indicates the requested resource does not exist.
var ErrResourceNotFound = errors.New("resource not found")

// MCPError is an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	if ve, ok := verrors.As(err); ok {
		return mapVectorError(ve)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Resource not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

func mapVectorError(ve *verrors.VectorError) *MCPError {
	message := ve.Message
	if ve.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ve.Message, ve.Suggestion)
	}

	switch ve.Code {
	case verrors.ErrCodeNotInitialized:
		return &MCPError{Code: ErrCodeNotInitialized, Message: message}
	case verrors.ErrCodeEmbeddingFailed:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	}

	switch ve.Category {
	case verrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case verrors.CategoryStorage:
		return &MCPError{Code: ErrCodeStorage, Message: message}
	case verrors.CategoryEmbedder:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
