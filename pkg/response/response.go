// Package response defines the JSON envelope shared by all API handlers.
package response

import "github.com/go-playground/validator/v10"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Error:   "Empty Request Body",
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Error:   "Bad Request",
	Message: "The request is malformed or contains invalid data.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Error:   "Resource Not Found",
	Message: "The requested resource was not found.",
}

var LinkExpiredResponse = Response{
	Status:  StatusError,
	Error:   "Link Expired",
	Message: "The short link exists but its validity period has ended.",
}

var ShortCodeConflictResponse = Response{
	Status:  StatusError,
	Error:   "Short Code Conflict",
	Message: "The requested short code is already in use.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Error:   "Server Error",
	Message: "An internal server error occurred. Please try again later.",
}

func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

// InvalidInputResponse builds an error envelope for a domain validation
// failure surfaced by the service layer.
func InvalidInputResponse(msg string) Response {
	return Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: msg,
	}
}

// ValidationErrorResponse builds an error envelope from validator errors,
// listing one detail per failed field.
func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: "The request contains invalid values.",
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return resp
	}

	for _, e := range errs {
		resp.Details = append(resp.Details, map[string]string{
			"field":   e.Field(),
			"message": messageForTag(e.Tag()),
		})
	}

	return resp
}

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	case "min":
		return "value is below the allowed minimum"
	case "max":
		return "value is above the allowed maximum"
	default:
		return "invalid value"
	}
}
