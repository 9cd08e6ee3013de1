package cpclient

import (
	"encoding/json"
	"time"
)

// statusOK is the envelope code for success
const statusOK = "0"

type envelope struct {
	Data          json.RawMessage   `json:"data"`
	StatusCode    string            `json:"statusCode"`
	StatusMessage string            `json:"statusMessage"`
	Fields        map[string]string `json:"fields"`
}

// Tokens is an access/refresh pair
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type User struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

type Badge struct {
	Status int    `json:"status"`
	Label  string `json:"label"`
	Color  string `json:"color"`
}

// Material mirrors the gateway material view
type Material struct {
	MaterialID         uint       `json:"material_id"`
	CPID               uint       `json:"cp_id"`
	CpName             string     `json:"cp_name"`
	CpIcon             string     `json:"cp_icon"`
	BusinessLicense    string     `json:"business_license"`
	Website            string     `json:"website"`
	VerificationImages []string   `json:"verification_images"`
	Status             int        `json:"status"`
	StatusName         string     `json:"status_name"`
	ReviewComment      string     `json:"review_comment"`
	Editable           bool       `json:"editable"`
	Badge              Badge      `json:"badge"`
	SubmittedAt        *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt         *time.Time `json:"reviewed_at,omitempty"`
	CreateTime         time.Time  `json:"create_time"`
	ModifyTime         time.Time  `json:"modify_time"`
}

// SaveRequest is the provider save body; Mode is save_draft or submit_review
type SaveRequest struct {
	CpName             string   `json:"cp_name"`
	CpIcon             string   `json:"cp_icon"`
	BusinessLicense    string   `json:"business_license"`
	Website            string   `json:"website"`
	VerificationImages []string `json:"verification_images"`
	Mode               string   `json:"mode"`
}

// MaterialPage is one page of the admin review queue
type MaterialPage struct {
	Materials []Material `json:"materials"`
	Total     int64      `json:"total"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

type Review struct {
	ID         uint      `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	MaterialID uint      `json:"material_id"`
	ActorID    uint      `json:"actor_id"`
	Action     string    `json:"action"`
	FromStatus int       `json:"from_status"`
	ToStatus   int       `json:"to_status"`
	Comment    string    `json:"comment,omitempty"`
}

// MaterialDetail is the admin view of one material with its history
type MaterialDetail struct {
	Material Material `json:"material"`
	Reviews  []Review `json:"reviews"`
}

type StatusInfo struct {
	Badge
	Name     string `json:"name"`
	Editable bool   `json:"editable"`
}
