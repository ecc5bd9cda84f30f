package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlag(t *testing.T) {
	assert.Equal(t, Yes, ParseFlag("1"))
	assert.Equal(t, No, ParseFlag("0"))
	assert.Equal(t, Unknown, ParseFlag(""))
	assert.Equal(t, Unknown, ParseFlag("maybe"))
}

func TestAuditRecordJSON(t *testing.T) {
	rec := AuditRecord{Address: "0xa", Mintable: Yes, LiquidityBurnt: No}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"0xa","mintable":true,"liquidity_burnt":false,"honeypot":null}`, string(data))

	var decoded AuditRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec, decoded)
}

func TestZeroAuditRecordIsPending(t *testing.T) {
	var rec AuditRecord
	assert.Equal(t, Unknown, rec.Honeypot)
	assert.Equal(t, "unknown", rec.Mintable.String())
}
