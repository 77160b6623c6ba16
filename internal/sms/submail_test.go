package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPrize(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "app", r.PostForm.Get("appid"))
		assert.Equal(t, "+15550100", r.PostForm.Get("to"))
		assert.Equal(t, "proj", r.PostForm.Get("project"))
		var vars map[string]string
		assert.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("vars")), &vars))
		assert.Equal(t, "SPIN10", vars["code"])
		assert.Equal(t, "2025-10-31", vars["valid_until"])
		_, _ = w.Write([]byte(`{"status":"success","send_id":"abc","fee":1}`))
	}))
	defer ts.Close()

	c := NewSubmailClient("app", "key", "proj")
	c.Endpoint = ts.URL
	resp, err := c.SendPrize(context.Background(), "+15550100", Prize{
		RewardName: "10% off",
		Code:       "SPIN10",
		ValidUntil: time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.SendID)
}

func TestSendPrize_Failure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","code":"106","msg":"invalid number"}`))
	}))
	defer ts.Close()

	c := NewSubmailClient("app", "key", "proj")
	c.Endpoint = ts.URL
	_, err := c.SendPrize(context.Background(), "123", Prize{Code: "X"})
	assert.EqualError(t, err, "invalid number")
}

func TestSendPrize_NotConfigured(t *testing.T) {
	var nilClient *SubmailClient
	assert.False(t, nilClient.Configured())
	_, err := NewSubmailClient("", "", "").SendPrize(context.Background(), "1", Prize{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
