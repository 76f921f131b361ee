package dto

type QueryAIResponse struct {
	Response         string `json:"response"`
	Model            string `json:"model"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
}

// ExtractedFields is the JSON object the extraction prompt asks the model for.
type ExtractedFields map[string]string

type RetrievedChunk struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}
