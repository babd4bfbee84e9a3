package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderDocumentWantDate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    time.Time
		wantErr bool
	}{
		{name: "date only", body: `{"customer_name":"Acme","want_date":"2025-05-20"}`, want: time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339", body: `{"customer_name":"Acme","want_date":"2025-05-20T08:30:00Z"}`, want: time.Date(2025, 5, 20, 8, 30, 0, 0, time.UTC)},
		{name: "missing", body: `{"customer_name":"Acme"}`},
		{name: "empty", body: `{"customer_name":"Acme","want_date":""}`},
		{name: "null", body: `{"customer_name":"Acme","want_date":null}`},
		{name: "garbage", body: `{"customer_name":"Acme","want_date":"20/05/2025"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order OrderDocument
			err := json.Unmarshal([]byte(tt.body), &order)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Acme", order.CustomerName)
			assert.True(t, tt.want.Equal(order.WantDate), "got %v", order.WantDate)
		})
	}
}

func TestOrderDocumentRoundTripKeepsWantDate(t *testing.T) {
	order := OrderDocument{
		CustomerName: "Acme",
		WantDate:     time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC),
		CreatedAt:    time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(order)
	require.NoError(t, err)

	var decoded OrderDocument
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, order, decoded)
}
