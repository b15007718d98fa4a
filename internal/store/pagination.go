package store

import (
	"encoding/base64"
	"encoding/json"
	"math"
)

type CursorPage struct {
	Items      interface{} `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

type OffsetPage struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// BillCursor points just past the last bill of a page. Bills are listed newest
// number first.
type BillCursor struct {
	NumberValue int64 `json:"n"`
}

func EncodeCursor(cursor BillCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

func DecodeCursor(encoded string) (BillCursor, error) {
	var cursor BillCursor
	if encoded == "" {
		return BillCursor{NumberValue: math.MaxInt64}, nil
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return cursor, err
	}

	err = json.Unmarshal(data, &cursor)
	return cursor, err
}

// NextPage trims a result fetched with limit+1 rows and builds the cursor for
// the following page.
func NextPage[T any](items []T, limit int, numberValue func(T) int64) *CursorPage {
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		nextCursor = EncodeCursor(BillCursor{NumberValue: numberValue(items[len(items)-1])})
	}

	return &CursorPage{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}
}
