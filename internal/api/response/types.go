package response

// Health is the body of the health endpoint
type Health struct {
	Status string `json:"status"`
}

// Status reports live server occupancy
type Status struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Queued      int `json:"queued"`
}
