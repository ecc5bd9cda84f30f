package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stormdex/internal/model"
)

func setupTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	server := httptest.NewServer(handler)
	return server, NewClient(server.URL, "sui", WithHTTPClient(resty.NewWithClient(server.Client())))
}

func TestFetchAudits(t *testing.T) {
	server, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token_security/sui", r.URL.Path)
		assert.Equal(t, "0xAa,0xbb,0xcc", r.URL.Query().Get("contract_addresses"))
		_, _ = w.Write([]byte(`{"code":1,"message":"OK","result":{
			"0xaa":{"is_mintable":"1","lp_burned":"0","is_honeypot":"0"},
			"0xbb":{"is_mintable":"0","lp_burned":"","is_honeypot":"1"},
			"0xzz":{"is_mintable":"1"}
		}}`))
	})
	defer server.Close()

	records, err := client.FetchAudits(context.Background(), []string{"0xAa", "0xbb", "0xcc"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, model.AuditRecord{Address: "0xAa", Mintable: model.Yes, LiquidityBurnt: model.No, Honeypot: model.No}, records["0xAa"])
	assert.Equal(t, model.Unknown, records["0xbb"].LiquidityBurnt)
	assert.Equal(t, model.Yes, records["0xbb"].Honeypot)
	_, ok := records["0xcc"]
	assert.False(t, ok)
}

func TestFetchAuditsErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrStatus},
		{"upstream code", http.StatusOK, `{"code":4029,"message":"too many requests"}`, ErrUpstream},
		{"bad json", http.StatusOK, `{"code":`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			defer server.Close()

			_, err := client.FetchAudits(context.Background(), []string{"0xaa"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestFetchAuditsEmpty(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "sui")
	records, err := client.FetchAudits(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}
