package models

import "time"

type MappingRequest struct {
	NamasteCode string  `json:"namaste_code" binding:"required"`
	DiseaseName string  `json:"disease_name" binding:"required"`
	Symptoms    *string `json:"symptoms"`
	TopK        *int    `json:"top_k" binding:"omitempty,min=1,max=10"`
}

// Suggestion is one ranked ICD-11 candidate.
type Suggestion struct {
	ICDCode         string  `json:"icd_code"`
	DiseaseName     string  `json:"disease_name"`
	Description     string  `json:"description"`
	Chapter         string  `json:"chapter"`
	Confidence      float64 `json:"confidence"`
	ConfidenceLevel string  `json:"confidence_level"`
}

type MappingResponse struct {
	NamasteCode      string       `json:"namaste_code"`
	DiseaseName      string       `json:"disease_name"`
	Suggestions      []Suggestion `json:"suggestions"`
	Timestamp        time.Time    `json:"timestamp"`
	ProcessingTimeMs float64      `json:"processing_time_ms"`
}

type RecommendationRequest struct {
	Symptoms       string  `json:"symptoms" binding:"required"`
	PatientHistory *string `json:"patient_history"`
	TopK           *int    `json:"top_k" binding:"omitempty,min=1,max=20"`
}

// Recommendation is one ranked AYUSH code for a symptom description.
type Recommendation struct {
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	NameEnglish     string  `json:"name_english"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	Confidence      float64 `json:"confidence"`
	ConfidenceLevel string  `json:"confidence_level"`
}

type RecommendationResponse struct {
	Query            string           `json:"query"`
	Recommendations  []Recommendation `json:"recommendations"`
	ProcessingTimeMs float64          `json:"processing_time_ms"`
}
