package api

import (
	"encoding/json"

	"github.com/starford/dagaz/internal/batch"
)

// BatchRequest is the request body for the batch endpoints. Operations are
// kept raw so decode failures can be reported per operation.
type BatchRequest struct {
	Operations []json.RawMessage `json:"operations"`
}

// BatchResponse is the response body for the batch endpoints.
type BatchResponse = batch.Result
