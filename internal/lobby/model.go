package lobby

import "time"

// MatchSummary 房间目录里的一条记录
type MatchSummary struct {
	ID        int       `json:"ID"`
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Players   int       `json:"players"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateMatchRequest POST /matches
type CreateMatchRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListResponse GET /matches
type ListResponse struct {
	Matches []MatchSummary `json:"matches"`
}
