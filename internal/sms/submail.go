package sms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultEndpoint = "https://api-v4.mysubmail.com/sms/xsend.json"

var ErrNotConfigured = errors.New("submail config missing")

// SubmailClient sends templated messages through Submail's xsend API. The
// project template receives the prize, code and valid_until variables.
type SubmailClient struct {
	AppID     string
	AppKey    string
	ProjectID string
	Endpoint  string
	HTTP      *http.Client
}

type SubmailResponse struct {
	Status string `json:"status"`
	SendID string `json:"send_id"`
	Fee    int    `json:"fee"`
	Code   string `json:"code"`
	Msg    string `json:"msg"`
}

// Prize is what gets texted to a winner.
type Prize struct {
	RewardName string
	Code       string
	ValidUntil time.Time
}

func NewSubmailClient(appID, appKey, projectID string) *SubmailClient {
	return &SubmailClient{
		AppID:     appID,
		AppKey:    appKey,
		ProjectID: projectID,
		Endpoint:  defaultEndpoint,
		HTTP: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *SubmailClient) Configured() bool {
	return c != nil && c.AppID != "" && c.AppKey != "" && c.ProjectID != ""
}

func (c *SubmailClient) SendPrize(ctx context.Context, phone string, prize Prize) (*SubmailResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	vars := map[string]string{
		"prize": prize.RewardName,
		"code":  prize.Code,
	}
	if !prize.ValidUntil.IsZero() {
		vars["valid_until"] = prize.ValidUntil.Format("2006-01-02")
	}
	varsJSON, err := json.Marshal(vars)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("appid", c.AppID)
	form.Set("to", phone)
	form.Set("project", c.ProjectID)
	form.Set("signature", c.AppKey)
	form.Set("vars", string(varsJSON))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed SubmailResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	if parsed.Status != "success" {
		return &parsed, errors.New(parsed.Msg)
	}
	return &parsed, nil
}
