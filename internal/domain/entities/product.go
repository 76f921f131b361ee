package entities

type Product struct {
	ID       string  `json:"-" bson:"_id,omitempty"`
	Code     string  `json:"Code" bson:"Code"`
	Name     string  `json:"Nom" bson:"Nom"`
	Price    float64 `json:"Prix" bson:"Prix"`
	Stock    int     `json:"Stock" bson:"Stock"`
	ImageURL string  `json:"Image_URL" bson:"Image_URL"`
}

func (p *Product) SetID(id string) { p.ID = id }
