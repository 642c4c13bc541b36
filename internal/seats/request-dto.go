package seats

// SeatSpec describes one seat to create
type SeatSpec struct {
	Floor       int    `json:"floor"`
	Zone        string `json:"zone"`
	Label       string `json:"label" binding:"required"`
	MonthlyRate int64  `json:"monthly_rate" binding:"required,gt=0"`
}

// CreateSeatsRequest seeds seats for a venue
type CreateSeatsRequest struct {
	Seats []SeatSpec `json:"seats" binding:"required,dive"`
}
