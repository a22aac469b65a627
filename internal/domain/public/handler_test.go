package public

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func trackRequest(t *testing.T, repo Repository, id string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/public/referrals/"+id, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("referral_id")
	c.SetParamValues(id)
	return rec, NewHandler(NewService(repo)).TrackReferral(c)
}

func TestTrackReferralEndpoint(t *testing.T) {
	repo := newMockRepo()
	repo.views["REF-2025-000123"] = sampleView()

	rec, err := trackRequest(t, repo, "ref-2025-000123")
	if err != nil {
		t.Fatalf("TrackReferral: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"REF-2025-000123"`) {
		t.Error("response body missing the referral identifier")
	}
}

func TestTrackReferralEndpoint_UnknownAndMalformedLookAlike(t *testing.T) {
	repo := newMockRepo()
	repo.views["REF-2025-000123"] = sampleView()

	// Unknown and malformed identifiers must be indistinguishable.
	for _, id := range []string{"REF-2025-999999", "not-an-id"} {
		_, err := trackRequest(t, repo, id)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusNotFound {
			t.Fatalf("Track(%q): err = %v, want 404", id, err)
		}
		if he.Message != "referral not found" {
			t.Errorf("Track(%q): message = %v, want uniform not-found", id, he.Message)
		}
	}
}
