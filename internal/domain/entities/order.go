package entities

const OrderStatusPending = "en_attente"

type Order struct {
	ID          string `json:"-" bson:"_id,omitempty"`
	OrderID     string `json:"Order_ID" bson:"Order_ID"`
	MessengerID string `json:"Messenger_ID" bson:"Messenger_ID"`
	ProductCode string `json:"Code_Produit" bson:"Code_Produit"`
	Quantity    int    `json:"Quantite" bson:"Quantite"`
	Status      string `json:"Statut" bson:"Statut"`
	Phone       string `json:"Telephone" bson:"Telephone"`
	Address     string `json:"Adresse" bson:"Adresse"`
	OrderDate   string `json:"Date_Commande" bson:"Date_Commande"`
}

func (o *Order) SetID(id string) { o.ID = id }

// OrderKey derives the composite identifier of a user's order for one product.
func OrderKey(messengerID, productCode string) string {
	return messengerID + "_" + productCode
}
