package models

// Result is the envelope returned for every routed intent.
type Result struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message,omitempty"`
	Answer         string          `json:"answer,omitempty"`
	AppointmentID  string          `json:"appointment_id,omitempty"`
	OrderID        string          `json:"order_id,omitempty"`
	Action         string          `json:"action,omitempty"`
	Alternatives   []CandidateSlot `json:"alternatives,omitempty"`
	AfterHours     bool            `json:"after_hours,omitempty"`
	AfterHoursNote string          `json:"after_hours_note,omitempty"`
}

func Failure(message string) Result {
	return Result{Success: false, Message: message}
}
