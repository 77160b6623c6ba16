package models

import "time"

// Reward mirrors one catalog entry. Stock and expiry fields are passed through untouched.
type Reward struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CouponCode     string    `json:"coupon_code"`
	IsTryAgain     bool      `json:"is_try_again"`
	StockLimit     int       `json:"stock_limit"`
	Stock          int       `json:"stock"`
	ExpiryDays     int       `json:"expiry_days"`
	RequiresReview bool      `json:"requires_review"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// Outcome is the authoritative prize of one spin.
type Outcome struct {
	RewardID       string `json:"reward_id"`
	RewardName     string `json:"reward_name"`
	IsWinner       bool   `json:"is_winner"`
	RedemptionCode string `json:"redemption_code"`
	PrizeCode      string `json:"prize_code,omitempty"`
	Description    string `json:"description"`
	ExpiryDays     int    `json:"expiry_days,omitempty"`
	UniqueCode     string `json:"unique_code,omitempty"`
	QRCode         string `json:"qr_code,omitempty"`
	RedeemLink     string `json:"redeem_link,omitempty"`
	// IssuedAt is set once when the outcome reaches the result step.
	IssuedAt time.Time `json:"issued_at,omitempty"`
}

// OutcomeFromReward builds the outcome a reward would produce when the wheel,
// not the remote service, decides the prize.
func OutcomeFromReward(r Reward) Outcome {
	return Outcome{
		RewardID:       r.ID,
		RewardName:     r.Name,
		IsWinner:       !r.IsTryAgain,
		RedemptionCode: r.CouponCode,
		Description:    r.Description,
		ExpiryDays:     r.ExpiryDays,
	}
}

type Step string

const (
	StepSlideshow Step = "slideshow"
	StepIntro     Step = "intro"
	StepReview    Step = "review"
	StepSpin      Step = "spin"
	StepResult    Step = "result"
)

// Review is what the visitor submits before spinning.
type Review struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Rating   int    `json:"rating"`
	Text     string `json:"review"`
}

// Play is one finished session, written to the play log when the result step is reached.
type Play struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	KioskID         string    `json:"kiosk_id"`
	ReviewReference string    `json:"review_reference"`
	RewardID        string    `json:"reward_id"`
	RewardName      string    `json:"reward_name"`
	IsWinner        bool      `json:"is_winner"`
	RedemptionCode  string    `json:"redemption_code"`
	UniqueCode      string    `json:"unique_code"`
	SegmentIndex    int       `json:"segment_index"`
	Matched         bool      `json:"matched"`
	RotationDeg     float64   `json:"rotation_deg"`
	CreatedAt       time.Time `json:"created_at"`
}
