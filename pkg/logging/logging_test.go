package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	r := require.New(t)

	log, err := New("warn", false)
	r.NoError(err)
	r.False(log.Core().Enabled(zap.InfoLevel))
	r.True(log.Core().Enabled(zap.WarnLevel))

	log, err = New("debug", true)
	r.NoError(err)
	r.True(log.Core().Enabled(zap.DebugLevel))

	_, err = New("loud", false)
	r.Error(err)
}
