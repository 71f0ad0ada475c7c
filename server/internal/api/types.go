package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}
