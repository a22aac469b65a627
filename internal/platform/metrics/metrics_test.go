package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Counters register on the global default registry, so assertions work on
// deltas rather than absolute values.

func TestMiddleware_CountsRequests(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/api/v1/hospitals", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/hospitals", "200"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hospitals", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/hospitals", "200"))
	if after != before+1 {
		t.Errorf("expected counter to increase by 1, got %f -> %f", before, after)
	}
}

func TestMiddleware_LabelsUseRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/api/v1/referrals/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/referrals/:id", "200"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/referrals/7c9e6679-7425-40de-944b-e07fc1f90ae7", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/referrals/:id", "200"))
	if after != before+1 {
		t.Errorf("expected route-template series to increase, got %f -> %f", before, after)
	}
}

func TestMiddleware_RecordsErrorStatus(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/patients/:id", "404"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/123", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/patients/:id", "404"))
	if after != before+1 {
		t.Errorf("expected 404 series to increase, got %f -> %f", before, after)
	}
}

func TestRecordReferralCreated(t *testing.T) {
	before := testutil.ToFloat64(referralsCreated.WithLabelValues("high"))
	RecordReferralCreated("high")
	after := testutil.ToFloat64(referralsCreated.WithLabelValues("high"))
	if after != before+1 {
		t.Errorf("expected increase by 1, got %f -> %f", before, after)
	}
}

func TestRecordReferralStatusChange(t *testing.T) {
	before := testutil.ToFloat64(referralStatusChanged.WithLabelValues("pending", "in_progress"))
	RecordReferralStatusChange("pending", "in_progress")
	after := testutil.ToFloat64(referralStatusChanged.WithLabelValues("pending", "in_progress"))
	if after != before+1 {
		t.Errorf("expected increase by 1, got %f -> %f", before, after)
	}
}

func TestRecordPublicLookup(t *testing.T) {
	hitBefore := testutil.ToFloat64(publicLookups.WithLabelValues("hit"))
	missBefore := testutil.ToFloat64(publicLookups.WithLabelValues("miss"))

	RecordPublicLookup(true)
	RecordPublicLookup(false)

	if got := testutil.ToFloat64(publicLookups.WithLabelValues("hit")); got != hitBefore+1 {
		t.Errorf("expected hit counter to increase, got %f -> %f", hitBefore, got)
	}
	if got := testutil.ToFloat64(publicLookups.WithLabelValues("miss")); got != missBefore+1 {
		t.Errorf("expected miss counter to increase, got %f -> %f", missBefore, got)
	}
}

func TestRecordIdentifierCollision(t *testing.T) {
	before := testutil.ToFloat64(identifierRetries.WithLabelValues("REF"))
	RecordIdentifierCollision("REF")
	after := testutil.ToFloat64(identifierRetries.WithLabelValues("REF"))
	if after != before+1 {
		t.Errorf("expected increase by 1, got %f -> %f", before, after)
	}
}

func TestRecordWebhookDelivery(t *testing.T) {
	before := testutil.ToFloat64(webhookDeliveries.WithLabelValues("referral.created", "success"))
	RecordWebhookDelivery("referral.created", true)
	after := testutil.ToFloat64(webhookDeliveries.WithLabelValues("referral.created", "success"))
	if after != before+1 {
		t.Errorf("expected increase by 1, got %f -> %f", before, after)
	}
}

func TestHandler_ServesTextFormat(t *testing.T) {
	// Make sure at least one series exists before scraping.
	RecordPatientRegistered()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "patients_registered_total") {
		t.Error("expected patients_registered_total in scrape output")
	}
}
