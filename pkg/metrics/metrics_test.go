package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSave(t *testing.T) {
	okBefore := testutil.ToFloat64(saves.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(saves.WithLabelValues("error"))

	ObserveSave(nil, 5*time.Millisecond)
	ObserveSave(errors.New("down"), time.Millisecond)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(saves.WithLabelValues("ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(saves.WithLabelValues("error")))
}

func TestActiveSessionsAndUploads(t *testing.T) {
	SetActiveSessions(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(activeSessions))

	before := testutil.ToFloat64(uploads.WithLabelValues("rejected"))
	ObserveUpload(nil, true)
	assert.Equal(t, before+1, testutil.ToFloat64(uploads.WithLabelValues("rejected")))
}
