package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-fees/core"
)

func newTestLogger(debug bool) (*RollbarLogger, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	l := NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST", Debug: debug})
	l.Enable(false)
	return l, buf
}

func TestRollbarLogger(t *testing.T) {
	l, buf := newTestLogger(false)

	l.Info("challans generated",
		map[string]interface{}{"school": "school-1", "created": 2},
		core.Person{ID: "usr-1", Username: "bursar"},
		errors.New("one guardian not notified"),
	)
	assert.Equal(t, "INFO: challans generated\n\tcreated=2 school=school-1\n\tone guardian not notified\n", buf.String())

	buf.Reset()
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.Warn("receipt not sent", "challan c-1")
	assert.Equal(t, "WARNING: receipt not sent\n\tchallan c-1\n", buf.String())
}

func TestRollbarLogger_debug(t *testing.T) {
	l, buf := newTestLogger(true)

	l.Debug("query", map[string]interface{}{"rows": 3})
	assert.Equal(t, "DEBUG: query\n\trows=3\n", buf.String())

	buf.Reset()
	l.Error("updating challan", errors.New("conflict"))
	assert.Contains(t, buf.String(), "ERROR: updating challan\n\tconflict\n")
	assert.Contains(t, buf.String(), "TestRollbarLogger_debug", "stack trace printed in debug")
}
