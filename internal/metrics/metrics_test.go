package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.PaymentApplied("create")
	m.PaymentApplied("create")
	m.PaymentRejected("budget_exceeded")
	m.OdontogramVersionCreated()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.payments.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentsRejected.WithLabelValues("budget_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.odontogramWrites))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.versionConflicts))
}

func TestHandler_ExposesCounters(t *testing.T) {
	m := New()
	m.CompletePatientSaved()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "consultorio_complete_patients_total 1")
}
