package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorDecoding(t *testing.T) {
	t.Run("client error with program logs", func(t *testing.T) {
		raw := `{"code":6,"message":"Transaction simulation failed",` +
			`"data":{"ClientError":["Program log: Error: Swap instruction exceeds desired slippage limit"]}}`

		var apiErr APIError
		require.NoError(t, json.Unmarshal([]byte(raw), &apiErr))
		assert.Equal(t, 6, apiErr.Code)
		require.NotNil(t, apiErr.Data)
		assert.Equal(t, ErrorTypeClientError, apiErr.Data.Type)
		assert.Equal(t, []string{"Program log: Error: Swap instruction exceeds desired slippage limit"}, apiErr.Logs())
	})

	t.Run("not enough balance keeps its trailing space", func(t *testing.T) {
		raw := `{"code":2,"message":"Not enough balance",` +
			`"data":{"NotEnoughBalance ":{"expected":2039280,"found":19266}}}`

		var apiErr APIError
		require.NoError(t, json.Unmarshal([]byte(raw), &apiErr))
		require.NotNil(t, apiErr.Data)
		assert.Equal(t, ErrorTypeNotEnoughBalance, apiErr.Data.Type)
		assert.Equal(t, "NotEnoughBalance ", string(apiErr.Data.Type))

		require.NotNil(t, apiErr.Data.Data)
		assert.Equal(t, uint64(2039280), apiErr.Data.Data.Dict["expected"])
		assert.Equal(t, uint64(19266), apiErr.Data.Data.Dict["found"])
		assert.Nil(t, apiErr.Logs())
	})

	t.Run("unknown error type degrades gracefully", func(t *testing.T) {
		raw := `{"code":99,"message":"oops","data":{"BrandNewServerError":["log"]}}`

		var apiErr APIError
		require.NoError(t, json.Unmarshal([]byte(raw), &apiErr))
		require.NotNil(t, apiErr.Data)
		assert.Equal(t, ErrorTypeUnknown, apiErr.Data.Type)
		assert.Equal(t, []string{"log"}, apiErr.Logs())
	})

	t.Run("missing data leaves no logs", func(t *testing.T) {
		raw := `{"code":1,"message":"bad request"}`

		var apiErr APIError
		require.NoError(t, json.Unmarshal([]byte(raw), &apiErr))
		assert.Nil(t, apiErr.Data)
		assert.Nil(t, apiErr.Logs())
	})

	t.Run("error string carries code and message", func(t *testing.T) {
		apiErr := &APIError{Code: 6, Message: "simulation failed"}
		assert.Contains(t, apiErr.Error(), "6")
		assert.Contains(t, apiErr.Error(), "simulation failed")
	})
}
