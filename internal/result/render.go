package result

import (
	"fmt"
	"strings"
	"time"

	"spinwin/internal/models"
)

type Branch string

const (
	BranchNone     Branch = "none"
	BranchWinner   Branch = "winner"
	BranchTryAgain Branch = "try_again"
)

const DefaultValidDays = 30

// View is everything the result screen shows.
type View struct {
	Branch      Branch    `json:"branch"`
	Title       string    `json:"title,omitempty"`
	RewardName  string    `json:"reward_name,omitempty"`
	Description string    `json:"description,omitempty"`
	Code        string    `json:"code,omitempty"`
	PrizeCode   string    `json:"prize_code,omitempty"`
	UniqueCode  string    `json:"unique_code,omitempty"`
	RedeemLink  string    `json:"redeem_link,omitempty"`
	QRImage     string    `json:"qr_image,omitempty"`
	QRPayload   string    `json:"qr_payload,omitempty"`
	ValidUntil  time.Time `json:"valid_until,omitempty"`
}

type Options struct {
	SiteURL   string
	ValidDays int
	Now       func() time.Time
}

// Render picks the winner or try-again branch for outcome. A try-again view
// never carries a code or a QR payload.
func Render(outcome *models.Outcome, opts Options) View {
	if outcome == nil {
		return View{Branch: BranchNone}
	}
	if !outcome.IsWinner {
		return View{
			Branch:      BranchTryAgain,
			Title:       "Better luck next time!",
			RewardName:  outcome.RewardName,
			Description: outcome.Description,
		}
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	days := outcome.ExpiryDays
	if days <= 0 {
		days = opts.ValidDays
	}
	if days <= 0 {
		days = DefaultValidDays
	}
	issued := outcome.IssuedAt
	if issued.IsZero() {
		issued = now()
	}
	v := View{
		Branch:      BranchWinner,
		Title:       "Congratulations!",
		RewardName:  outcome.RewardName,
		Description: outcome.Description,
		Code:        outcome.RedemptionCode,
		PrizeCode:   prizeCode(outcome, issued),
		UniqueCode:  outcome.UniqueCode,
		RedeemLink:  outcome.RedeemLink,
		QRImage:     outcome.QRCode,
		ValidUntil:  issued.AddDate(0, 0, days),
	}
	if v.RedeemLink != "" {
		v.QRPayload = v.RedeemLink
	} else {
		v.QRPayload = bundle(v, opts.SiteURL)
	}
	return v
}

// Issue fixes the issue time and prize code of a winning outcome so every
// later render shows the same code, expiry and QR payload.
func Issue(o models.Outcome, at time.Time) models.Outcome {
	if o.IssuedAt.IsZero() {
		o.IssuedAt = at
	}
	if o.IsWinner && o.PrizeCode == "" {
		o.PrizeCode = prizeCode(&o, o.IssuedAt)
	}
	return o
}

func prizeCode(o *models.Outcome, issued time.Time) string {
	switch {
	case o.PrizeCode != "":
		return o.PrizeCode
	case o.RedemptionCode != "":
		return o.RedemptionCode
	default:
		return fmt.Sprintf("PRIZE-%d", issued.UnixMilli())
	}
}

// bundle is the plain-text QR content used when the service issued no redeem link.
func bundle(v View, siteURL string) string {
	var b strings.Builder
	b.WriteString("CONGRATULATIONS!\n\n")
	fmt.Fprintf(&b, "Prize: %s\n", v.RewardName)
	if v.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", v.Description)
	}
	b.WriteString("\n")
	if v.Code != "" {
		fmt.Fprintf(&b, "Coupon Code: %s\n", v.Code)
	}
	fmt.Fprintf(&b, "Prize Code: %s\n", v.PrizeCode)
	if v.UniqueCode != "" {
		fmt.Fprintf(&b, "Unique Code: %s\n", v.UniqueCode)
	}
	fmt.Fprintf(&b, "\nValid Until: %s\n\n", v.ValidUntil.Format("2006-01-02"))
	b.WriteString("To redeem:\n")
	b.WriteString("1. Show this QR code at checkout\n")
	b.WriteString("2. Or use the codes above online\n")
	if siteURL != "" {
		fmt.Fprintf(&b, "3. Visit: %s\n", siteURL)
	}
	b.WriteString("\nThank you for spinning with us!")
	return b.String()
}
