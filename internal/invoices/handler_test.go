package invoices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tempora-app/tempora/internal/period"
	"github.com/tempora-app/tempora/internal/shared"
)

type staticSettings struct{}

func (staticSettings) Billing(ctx context.Context) (period.Settings, error) {
	return period.DefaultSettings(), nil
}

func doRequest(h http.Handler, method, target string, actor shared.Actor) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if actor.UserID != 0 {
		req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSubmitEndpoint(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	h := NewHandler(nil, svc, staticSettings{})
	seedWeekEntries(store, 2)

	rr := doRequest(h.Routes(), http.MethodPost, "/submit", shared.Actor{UserID: 2, Role: "member"})
	require.Equal(t, http.StatusCreated, rr.Code)

	var inv Invoice
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inv))
	require.Equal(t, StatusSubmitted, inv.Status)

	// Double submit surfaces as a 409.
	rr = doRequest(h.Routes(), http.MethodPost, "/submit", shared.Actor{UserID: 2, Role: "member"})
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestTransitionsRequireAdmin(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	h := NewHandler(nil, svc, staticSettings{})
	seedWeekEntries(store, 2)

	rr := doRequest(h.Routes(), http.MethodPost, "/submit", shared.Actor{UserID: 2, Role: "member"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var inv Invoice
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inv))

	for _, action := range []string{"approve", "pay", "revert", "cancel"} {
		rr = doRequest(h.Routes(), http.MethodPost, fmt.Sprintf("/%d/%s", inv.ID, action), shared.Actor{UserID: 2, Role: "member"})
		require.Equal(t, http.StatusForbidden, rr.Code, action)
	}

	rr = doRequest(h.Routes(), http.MethodPost, fmt.Sprintf("/%d/approve", inv.ID), shared.Actor{UserID: 1, Role: "admin"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(h.Routes(), http.MethodPost, fmt.Sprintf("/%d/pay", inv.ID), shared.Actor{UserID: 1, Role: "admin"})
	require.Equal(t, http.StatusOK, rr.Code)

	var paid Invoice
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &paid))
	require.Equal(t, StatusPaid, paid.Status)
}

func TestGetEndpointScopes(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	h := NewHandler(nil, svc, staticSettings{})
	seedWeekEntries(store, 2)

	rr := doRequest(h.Routes(), http.MethodPost, "/submit", shared.Actor{UserID: 2, Role: "member"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var inv Invoice
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inv))

	rr = doRequest(h.Routes(), http.MethodGet, fmt.Sprintf("/%d", inv.ID), shared.Actor{UserID: 3, Role: "member"})
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(h.Routes(), http.MethodGet, fmt.Sprintf("/%d", inv.ID), shared.Actor{UserID: 2, Role: "member"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(h.Routes(), http.MethodGet, "/not-a-number", shared.Actor{UserID: 2, Role: "member"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

type transitionLog struct {
	observed []string
}

func (l *transitionLog) ObserveTransition(action, outcome string) {
	l.observed = append(l.observed, action+"/"+outcome)
}

func TestTransitionsAreCounted(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	observed := &transitionLog{}
	h := NewHandler(nil, svc, staticSettings{}).WithMetrics(observed)
	seedWeekEntries(store, 2)

	rr := doRequest(h.Routes(), http.MethodPost, "/submit", shared.Actor{UserID: 2, Role: "member"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var inv Invoice
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inv))

	rr = doRequest(h.Routes(), http.MethodPost, "/submit", shared.Actor{UserID: 2, Role: "member"})
	require.Equal(t, http.StatusConflict, rr.Code)

	admin := shared.Actor{UserID: 1, Role: "admin"}
	rr = doRequest(h.Routes(), http.MethodPost, fmt.Sprintf("/%d/approve", inv.ID), admin)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(h.Routes(), http.MethodPost, "/999/pay", admin)
	require.Equal(t, http.StatusNotFound, rr.Code)

	require.Equal(t, []string{"submit/ok", "submit/conflict", "approve/ok", "pay/not_found"}, observed.observed)
}

func TestDeadlineEndpoint(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	h := NewHandler(nil, svc, staticSettings{})

	rr := doRequest(h.DeadlineRoutes(), http.MethodGet, "/", shared.Actor{UserID: 1, Role: "admin"})
	require.Equal(t, http.StatusOK, rr.Code)

	var report DeadlineReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	require.Equal(t, "UTC", report.Zone)
	require.Len(t, report.Statuses, 3)
}
