package entities

import "strconv"

const (
	FlowWorker = "worker"
	FlowOrder  = "order"
)

// Field names shared by the Airtable columns and the Mongo documents.
const (
	FieldMessengerID = "Messenger_ID"
	FieldGender      = "Genre"
	FieldCity        = "Ville"
	FieldExperience  = "Experience"
	FieldPhone       = "Telephone"
	FieldAddress     = "Adresse"
	FieldProductCode = "Code_Produit"
	FieldQuantity    = "Quantite"
)

// Conversation is the per-user state row keyed by the Messenger sender id.
type Conversation struct {
	ID              string `json:"-" bson:"_id,omitempty"`
	MessengerID     string `json:"Messenger_ID" bson:"Messenger_ID"`
	History         string `json:"conversation_history" bson:"conversation_history"`
	LastMessage     string `json:"Dernier_Message" bson:"Dernier_Message"`
	LastContactDate string `json:"Date_Dernier_Contact" bson:"Date_Dernier_Contact"`
	MessageCount    int    `json:"Message_Count" bson:"Message_Count"`
	Flow            string `json:"Flux" bson:"Flux"`
	Gender          string `json:"Genre" bson:"Genre"`
	City            string `json:"Ville" bson:"Ville"`
	Experience      string `json:"Experience" bson:"Experience"`
	Phone           string `json:"Telephone" bson:"Telephone"`
	Address         string `json:"Adresse" bson:"Adresse"`
	ProductCode     string `json:"Code_Produit" bson:"Code_Produit"`
	Quantity        int    `json:"Quantite" bson:"Quantite"`
}

func (c *Conversation) SetID(id string) { c.ID = id }

// Field returns the value of a collected business field, empty when unset.
func (c *Conversation) Field(name string) string {
	switch name {
	case FieldGender:
		return c.Gender
	case FieldCity:
		return c.City
	case FieldExperience:
		return c.Experience
	case FieldPhone:
		return c.Phone
	case FieldAddress:
		return c.Address
	case FieldProductCode:
		return c.ProductCode
	case FieldQuantity:
		if c.Quantity <= 0 {
			return ""
		}
		return strconv.Itoa(c.Quantity)
	}
	return ""
}

// SetField assigns a collected business field. Unknown names are ignored.
func (c *Conversation) SetField(name, value string) {
	switch name {
	case FieldGender:
		c.Gender = value
	case FieldCity:
		c.City = value
	case FieldExperience:
		c.Experience = value
	case FieldPhone:
		c.Phone = value
	case FieldAddress:
		c.Address = value
	case FieldProductCode:
		c.ProductCode = value
	case FieldQuantity:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			n = 0
		}
		c.Quantity = n
	}
}
