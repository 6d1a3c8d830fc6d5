package ecommerce

import (
	"encoding/json"
	"strconv"
)

// wcErrorResponse is the error envelope returned by the WordPress REST API
type wcErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status     int       `json:"status"`
		ResourceID flexInt64 `json:"resource_id"`
	} `json:"data"`
}

// wcErrCodeTermExists is returned when creating a category whose name already exists
const wcErrCodeTermExists = "term_exists"

// wcMediaResponse is the subset of the media object returned after upload
type wcMediaResponse struct {
	ID           int64  `json:"id"`
	SourceURL    string `json:"source_url"`
	Slug         string `json:"slug"`
	MediaDetails struct {
		File string `json:"file"`
	} `json:"media_details"`
}

// wcCategoryCreate is the category creation body
type wcCategoryCreate struct {
	Name string `json:"name"`
}

// wcWebhookCreate is the webhook creation body
type wcWebhookCreate struct {
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	DeliveryURL string `json:"delivery_url"`
	Secret      string `json:"secret"`
	Status      string `json:"status"`
}

// flexInt64 accepts numbers encoded either as JSON numbers or strings
type flexInt64 int64

// UnmarshalJSON implements json.Unmarshaler
func (f *flexInt64) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = 0
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		v, err := n.Int64()
		if err != nil {
			return err
		}
		*f = flexInt64(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt64(v)
	return nil
}
