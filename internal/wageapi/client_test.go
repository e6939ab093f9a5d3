package wageapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepath/roi-ingest/internal/etlerr"
)

func newFakeWageAPI(t *testing.T, handler gin.HandlerFunc) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/timeseries/data/", handler)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL})
}

func TestFetchSuccess(t *testing.T) {
	var got Request
	c := newFakeWageAPI(t, func(ctx *gin.Context) {
		assert.NoError(t, ctx.ShouldBindJSON(&got))
		ctx.JSON(http.StatusOK, gin.H{
			"status":  StatusSucceeded,
			"message": []string{},
			"Results": gin.H{"series": []gin.H{{
				"seriesID": "OEUS480000000000047211104",
				"catalog":  gin.H{"occupation": "Electricians"},
				"data":     []gin.H{{"year": "2024", "period": "A01", "value": "61,230"}},
			}}},
		})
	})

	res, err := c.Fetch(context.Background(), Request{
		SeriesID:        []string{"OEUS480000000000047211104"},
		RegistrationKey: "key-1",
		StartYear:       "2023",
		EndYear:         "2024",
		Catalog:         true,
	})
	require.NoError(t, err)
	require.Len(t, res.Results.Series, 1)
	s := res.Results.Series[0]
	assert.Equal(t, "Electricians", s.Catalog.OccupationName)
	assert.Equal(t, "61,230", s.Data[0].Value)

	assert.Equal(t, "key-1", got.RegistrationKey)
	assert.Equal(t, []string{"OEUS480000000000047211104"}, got.SeriesID)
	assert.True(t, got.Catalog)
}

func TestFetchClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   gin.H
		kind   etlerr.Kind
	}{
		{"http 429", http.StatusTooManyRequests, gin.H{}, etlerr.KindQuotaExhausted},
		{"threshold reply", http.StatusOK, gin.H{
			"status":  StatusNotProcessed,
			"message": []string{"Daily threshold for total number of requests allocated to API key has been reached."},
		}, etlerr.KindQuotaExhausted},
		{"server error", http.StatusBadGateway, gin.H{}, etlerr.KindTransient},
		{"bad request", http.StatusBadRequest, gin.H{}, etlerr.KindUpstream},
		{"other not processed", http.StatusOK, gin.H{
			"status":  StatusNotProcessed,
			"message": []string{"Invalid series id"},
		}, etlerr.KindUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeWageAPI(t, func(ctx *gin.Context) {
				ctx.JSON(tt.status, tt.body)
			})
			_, err := c.Fetch(context.Background(), Request{SeriesID: []string{"x"}})
			require.Error(t, err)
			assert.Equal(t, tt.kind, etlerr.KindOf(err))
		})
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(Options{BaseURL: url}).Fetch(context.Background(), Request{})
	assert.True(t, etlerr.IsRetryable(err))
}

func TestQuotaExhausted(t *testing.T) {
	assert.False(t, (&Response{Status: StatusSucceeded, Message: []string{"threshold"}}).QuotaExhausted())
	assert.True(t, (&Response{Status: StatusNotProcessed, Message: []string{"Daily THRESHOLD reached"}}).QuotaExhausted())
}
