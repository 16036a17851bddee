package pagination

import (
	"encoding/base64"
	"encoding/json"
)

type Pagination struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit,default=10" validate:"gte=1,lte=250"` // Min 1, Max 250
}

type Cursor struct {
	CreatedAt string `json:"created_at,omitempty"`
	ID        string `json:"id,omitempty"`
}

type PageInfo struct {
	EndCursor   string `json:"end_cursor,omitempty"`
	HasNextPage bool   `json:"has_next_page"`
}

// Encode serialises the cursor as URL-safe base64 JSON.
func (c Cursor) Encode() string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(b)
}

// Decode parses a base64 cursor produced by Encode. An empty or malformed
// cursor yields the zero value.
func Decode(raw string) Cursor {
	var c Cursor
	if raw == "" {
		return c
	}
	b, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return Cursor{}
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}
	}
	return c
}
