package model

import "time"

// UserProfile carries the health history facts the guard and prompt builder
// need about a user.
type UserProfile struct {
	UserID            string   `json:"user_id"`
	ChronicConditions []string `json:"chronic_conditions"`
	Allergies         []string `json:"allergies,omitempty"`
	Medications       []string `json:"medications,omitempty"`
}

// AnalysisRecord is the outward-facing analysis of one document: structured
// data, retrieval context, the generated narrative, and the safety verdict.
// Built once by the assembler and read-only afterwards.
type AnalysisRecord struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id,omitempty"`
	SourcePath string           `json:"source_path,omitempty"`
	Report     StructuredReport `json:"structured_data"`
	Context    RetrievalResult  `json:"context"`
	Analysis   string           `json:"analysis"`
	Risk       RiskAssessment   `json:"risk_assessment"`
	Validation ValidationResult `json:"validation"`
	CreatedAt  time.Time        `json:"created_at"`
}
