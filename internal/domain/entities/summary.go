package entities

// Summary holds the latest LLM condensation of a user's message history.
type Summary struct {
	ID           string `json:"-" bson:"_id,omitempty"`
	MessengerID  string `json:"Messenger_ID" bson:"Messenger_ID"`
	Text         string `json:"Resume" bson:"Resume"`
	MessageCount int    `json:"Message_Count" bson:"Message_Count"`
	Date         string `json:"Date_Resume" bson:"Date_Resume"`
}

func (s *Summary) SetID(id string) { s.ID = id }
