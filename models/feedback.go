package models

// FeedbackRecord is one persisted clinician verdict on a suggestion.
// Optional fields serialize as null when absent.
type FeedbackRecord struct {
	ID               string  `json:"id" bson:"feedback_id"`
	Timestamp        float64 `json:"timestamp" bson:"timestamp"`
	NamasteCode      string  `json:"namaste_code" bson:"namaste_code"`
	SuggestedICDCode string  `json:"suggested_icd_code" bson:"suggested_icd_code"`
	Accepted         bool    `json:"accepted" bson:"accepted"`
	CorrectICDCode   *string `json:"correct_icd_code" bson:"correct_icd_code"`
	Notes            *string `json:"notes" bson:"notes"`
	DoctorID         *string `json:"doctor_id" bson:"doctor_id"`
}

type FeedbackRequest struct {
	NamasteCode      string  `json:"namaste_code" binding:"required"`
	SuggestedICDCode string  `json:"suggested_icd_code" binding:"required"`
	Accepted         *bool   `json:"accepted" binding:"required"`
	CorrectICDCode   *string `json:"correct_icd_code"`
	Notes            *string `json:"notes"`
	DoctorID         *string `json:"doctor_id"`
}

type FeedbackResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	FeedbackID string `json:"feedback_id,omitempty"`
}
