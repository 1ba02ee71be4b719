package dto

// Pagination bounds for attendee listings, shared by the service layer and
// the store so both enforce the same contract.
const (
	DefaultPerPage = 50
	MaxPerPage     = 200
)

// ListFilter contains query parameters for attendee listing endpoints.
type ListFilter struct {
	Status  string
	Q       string
	Company string
	Page    int
	PerPage int
}
