package dto

import "encoding/json"

type AirtableRecord struct {
	ID          string          `json:"id,omitempty"`
	CreatedTime string          `json:"createdTime,omitempty"`
	Fields      json.RawMessage `json:"fields"`
}

type AirtableListResponse struct {
	Records []AirtableRecord `json:"records"`
	Offset  string           `json:"offset,omitempty"`
}

type AirtableWriteRequest struct {
	Records  []AirtableRecord `json:"records,omitempty"`
	Fields   json.RawMessage  `json:"fields,omitempty"`
	Typecast bool             `json:"typecast"`
}
