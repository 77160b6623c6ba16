package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"spinwin/internal/apperr"
	"spinwin/internal/models"
)

const DefaultTimeout = 10 * time.Second

// Client talks to the spin-win reward service. Every response is wrapped in
// an envelope; success=false is treated as a failure carrying message.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	log     zerolog.Logger
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

type rewardDTO struct {
	ID             string    `json:"_id"`
	RewardName     string    `json:"rewardName"`
	Description    string    `json:"description"`
	CouponCode     string    `json:"couponCode"`
	StockLimit     int       `json:"stockLimit"`
	Stock          int       `json:"stock"`
	ExpiryDays     int       `json:"expiryDays"`
	IsTryAgain     bool      `json:"isTryAgain"`
	RequiresReview bool      `json:"requiresReview"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type rewardsData struct {
	Rewards      []rewardDTO `json:"rewards"`
	Page         int         `json:"page"`
	Limit        int         `json:"limit"`
	TotalRewards int         `json:"totalRewards"`
	TotalPages   int         `json:"totalPages"`
}

type reviewDTO struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Rating   int    `json:"rating"`
	Review   string `json:"review"`
}

type reviewData struct {
	ReviewID string `json:"reviewId"`
	QRCode   string `json:"qrCode"`
}

type spinRecord struct {
	ID         string `json:"_id"`
	SpinResult string `json:"spinResult"`
	UniqueCode string `json:"uniqueCode"`
}

type prizeDTO struct {
	ID          string `json:"id"`
	RewardName  string `json:"rewardName"`
	CouponCode  string `json:"couponCode"`
	Description string `json:"description"`
	IsTryAgain  bool   `json:"isTryAgain"`
	PrizeCode   string `json:"prizeCode"`
}

type spinData struct {
	Prize        *prizeDTO   `json:"prize"`
	Spin         *spinRecord `json:"spin"`
	SpinDetails  *spinRecord `json:"spinDetails"`
	QRCode       string      `json:"qrCode"`
	Link         string      `json:"link"`
	RedeemLink   string      `json:"redeemLink"`
	ErrorMessage string      `json:"errorMessage"`
}

func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// FetchRewards returns the reward catalog in service order.
func (c *Client) FetchRewards(ctx context.Context) ([]models.Reward, error) {
	var data rewardsData
	if err := c.do(ctx, http.MethodGet, "/rewards", nil, &data); err != nil {
		return nil, err
	}
	out := make([]models.Reward, 0, len(data.Rewards))
	for _, r := range data.Rewards {
		out = append(out, models.Reward{
			ID:             r.ID,
			Name:           r.RewardName,
			Description:    r.Description,
			CouponCode:     r.CouponCode,
			IsTryAgain:     r.IsTryAgain,
			StockLimit:     r.StockLimit,
			Stock:          r.Stock,
			ExpiryDays:     r.ExpiryDays,
			RequiresReview: r.RequiresReview,
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
		})
	}
	return out, nil
}

// SubmitReview posts the visitor's review and returns the review reference
// that authorizes exactly one spin.
func (c *Client) SubmitReview(ctx context.Context, review models.Review) (string, error) {
	body, err := json.Marshal(reviewDTO{
		FullName: review.FullName,
		Email:    review.Email,
		Phone:    review.Phone,
		Rating:   review.Rating,
		Review:   review.Text,
	})
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeInvalidRequest, "invalid review")
	}
	var data reviewData
	if err := c.do(ctx, http.MethodPost, "/spin-win/submit-review", body, &data); err != nil {
		return "", apperr.Wrap(err, apperr.CodeReviewSubmitFailed, messageOr(err, apperr.ErrReviewSubmitFailed.Message))
	}
	if data.ReviewID == "" {
		return "", apperr.Wrap(errors.New("empty review id"), apperr.CodeReviewSubmitFailed, apperr.ErrReviewSubmitFailed.Message)
	}
	return data.ReviewID, nil
}

// ResolveSpin asks the service for the prize of the spin tied to reference.
func (c *Client) ResolveSpin(ctx context.Context, reference string) (models.Outcome, error) {
	var data spinData
	path := "/spin-win/spin-wheel/" + url.PathEscape(reference)
	if err := c.do(ctx, http.MethodPatch, path, nil, &data); err != nil {
		return models.Outcome{}, apperr.Wrap(err, apperr.CodeSpinResolutionFailed, messageOr(err, apperr.ErrSpinResolutionFailed.Message))
	}
	if data.ErrorMessage != "" {
		return models.Outcome{}, apperr.New(apperr.CodeSpinResolutionFailed, data.ErrorMessage)
	}
	if data.Prize == nil {
		return models.Outcome{}, apperr.Wrap(errors.New("response has no prize"), apperr.CodeSpinResolutionFailed, apperr.ErrSpinResolutionFailed.Message)
	}
	return data.outcome(), nil
}

func (d spinData) outcome() models.Outcome {
	o := models.Outcome{
		RewardID:       d.Prize.ID,
		RewardName:     d.Prize.RewardName,
		IsWinner:       !d.Prize.IsTryAgain,
		RedemptionCode: d.Prize.CouponCode,
		PrizeCode:      d.Prize.PrizeCode,
		Description:    d.Prize.Description,
		QRCode:         d.QRCode,
		RedeemLink:     d.RedeemLink,
	}
	if o.RedeemLink == "" {
		o.RedeemLink = d.Link
	}
	for _, rec := range []*spinRecord{d.SpinDetails, d.Spin} {
		if rec != nil && rec.UniqueCode != "" {
			o.UniqueCode = rec.UniqueCode
			break
		}
	}
	return o
}

// serviceError is a non-success envelope or HTTP error. Its message is safe to
// show on the kiosk.
type serviceError struct {
	Status  int
	Message string
}

func (e *serviceError) Error() string {
	return fmt.Sprintf("reward service: status %d: %s", e.Status, e.Message)
}

func messageOr(err error, fallback string) string {
	var se *serviceError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c.BaseURL == "" {
		return errors.New("reward service url missing")
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Str("request_id", reqID).Msg("reward service unreachable")
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("reward service call")

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &serviceError{Status: resp.StatusCode}
		}
		return fmt.Errorf("decode envelope: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return &serviceError{Status: resp.StatusCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
