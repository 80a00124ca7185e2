package chi

import "encoding/json"

// ErrorResponseCode is the machine-readable error classification returned to clients.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest                   ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized                 ErrorResponseCode = "unauthorized"
	ErrorResponseCodeInvalidRequest               ErrorResponseCode = "invalid_request"
	ErrorResponseCodeEmbeddingProviderUnavailable ErrorResponseCode = "embedding_provider_unavailable"
	ErrorResponseCodeInvalidEmbeddingShape        ErrorResponseCode = "invalid_embedding_shape"
	ErrorResponseCodeIndexUnavailable             ErrorResponseCode = "index_unavailable"
	ErrorResponseCodeIndexQueryRejected           ErrorResponseCode = "index_query_rejected"
	ErrorResponseCodeInternalError                ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// RetrieveRequest is the POST /api/v1/retrieve body.
// TopK is raw so that strings and non-numeric values fall back to the default instead of failing decode.
type RetrieveRequest struct {
	Query string          `json:"query"`
	TopK  json.RawMessage `json:"topK,omitempty"`
	Mode  string          `json:"mode,omitempty"`
}

// RetrieveParams are the GET /api/v1/retrieve query parameters.
type RetrieveParams struct {
	Query *string
	TopK  *string
	Mode  *string
}

// MatchItem is one retrieved entry.
type MatchItem struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// RetrieveResponse is the success body.
type RetrieveResponse struct {
	Items   []MatchItem `json:"items"`
	Mode    string      `json:"mode"`
	Total   int         `json:"total"`
	Dropped int         `json:"dropped"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}
