package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThrottlingLogger(t *testing.T) {
	var records []*Record
	base := New()
	base.SetHandler(FuncHandler(func(r *Record) error {
		records = append(records, r)
		return nil
	}))
	logger := NewThrottlingLogger(base)

	logger.Debug("gate closed", "attempt", 1)
	logger.Debug("gate closed", "attempt", 2)
	logger.Debug("gate closed", "attempt", 3)
	logger.Warn("different message")

	require.Len(t, records, 2)
	require.Equal(t, "gate closed", records[0].Msg)
	require.Equal(t, "different message", records[1].Msg)
}
