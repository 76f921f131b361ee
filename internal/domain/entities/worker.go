package entities

// Worker is a registration row in the tailors list.
type Worker struct {
	ID               string `json:"-" bson:"_id,omitempty"`
	MessengerID      string `json:"Messenger_ID" bson:"Messenger_ID"`
	Gender           string `json:"Genre" bson:"Genre"`
	City             string `json:"Ville" bson:"Ville"`
	Experience       string `json:"Experience" bson:"Experience"`
	Phone            string `json:"Telephone" bson:"Telephone"`
	RegistrationDate string `json:"Date_Inscription" bson:"Date_Inscription"`
}

func (w *Worker) SetID(id string) { w.ID = id }
