package models

// Account is the read-side aggregate exposed to API consumers: the raw chain
// account data plus the number of operations recorded locally for it. It has
// no lifecycle of its own; it is assembled per request.
type Account struct {
	Name           string                 `json:"name"`
	Profile        map[string]interface{} `json:"profile"`
	OperationCount int64                  `json:"operation_count"`
}
