package apid

// markReadRequest is the body of PATCH /messages/{id}/read.
type markReadRequest struct {
	IsRead bool `json:"is_read"`
}

// queryParams is the validated shape of GET /messages' query string.
type queryParams struct {
	Recipient string `validate:"omitempty"`
	IsRead    string `validate:"omitempty,oneof=true false"`
	DateFrom  string `validate:"omitempty"`
	DateTo    string `validate:"omitempty"`
	Search    string `validate:"omitempty"`
	Advanced  string `validate:"omitempty"`
	Page      int    `validate:"omitempty,min=1"`
	PageSize  int    `validate:"omitempty,min=1,max=200"`
	SortBy    string `validate:"omitempty,oneof=arrival_time is_read"`
	SortOrder string `validate:"omitempty,oneof=ASC DESC"`
}

// errorResponse matches the teacher's respondJSON error shape.
type errorResponse struct {
	Error string `json:"error"`
}
