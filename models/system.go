package models

type HealthResponse struct {
	Status           string  `json:"status"`
	ModelLoaded      bool    `json:"model_loaded"`
	ICD11CodesLoaded int     `json:"icd11_codes_loaded"`
	CacheEnabled     bool    `json:"cache_enabled"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

type ModelInfo struct {
	ModelName    string `json:"model_name"`
	EmbeddingDim int    `json:"embedding_dim"`
	ModelLoaded  bool   `json:"model_loaded"`
}

type ModelsResponse struct {
	EmbeddingModel    ModelInfo `json:"embedding_model"`
	ICD11CodesCount   int       `json:"icd11_codes_count"`
	NamasteCodesCount int       `json:"namaste_codes_count"`
}

type ReloadResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	ICD11CodesCount   int    `json:"icd11_codes_count"`
	NamasteCodesCount int    `json:"namaste_codes_count"`
}
