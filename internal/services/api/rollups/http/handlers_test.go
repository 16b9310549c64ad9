package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/period"
	"pulseboard/internal/core/rollup"
	pnet "pulseboard/internal/platform/net"
	phttp "pulseboard/internal/platform/net/http"
	"pulseboard/internal/services/api/rollups/domain"
	odom "pulseboard/internal/services/orchestrator/domain"
	rdom "pulseboard/internal/services/rollup/domain"
)

type fakeEngine struct {
	got      rdom.Request
	runsOrg  string
	runStage period.Granularity
	limit    int
}

func (f *fakeEngine) RunStage(_ context.Context, req rdom.Request) (rdom.StageResult, error) {
	f.got = req
	return rdom.StageResult{OrganizationID: req.OrganizationID, Stage: req.Stage, Outcome: rdom.OutcomeOK}, nil
}

func (f *fakeEngine) Runs(_ context.Context, org string, stage period.Granularity, limit int) ([]rdom.Run, error) {
	f.runsOrg, f.runStage, f.limit = org, stage, limit
	return []rdom.Run{}, nil
}

func (f *fakeEngine) Aggregates(context.Context, period.Granularity, string, string, canonical.EntityType) ([]rollup.Row, error) {
	return nil, nil
}

type fakeOrch struct{ got odom.RunRequest }

func (f *fakeOrch) Run(_ context.Context, req odom.RunRequest) (odom.Report, error) {
	f.got = req
	return odom.Report{AsOf: req.AsOf}, nil
}

func newServer(p domain.Ports) stdhttp.Handler {
	m := chi.NewRouter()
	Register(phttp.AdaptChi(m), p)
	return m
}

func do(h stdhttp.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStage_MapsPathAndBody(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{}
	h := newServer(domain.Ports{Engine: eng})

	rec := do(h, "POST", "/stages/Monthly", `{"organization_id":"acme","period_key":"2025-03","as_of":"2025-04-05T10:00:00+02:00","backfill":true,"depth":3}`)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	want := time.Date(2025, 4, 5, 8, 0, 0, 0, time.UTC)
	if eng.got.Stage != period.Monthly || eng.got.OrganizationID != "acme" || eng.got.PeriodKey != "2025-03" ||
		!eng.got.Backfill || eng.got.Depth != 3 || !eng.got.AsOf.Equal(want) {
		t.Fatalf("request %+v", eng.got)
	}
}

func TestStage_Rejects(t *testing.T) {
	t.Parallel()

	h := newServer(domain.Ports{Engine: &fakeEngine{}})
	cases := []struct {
		name, path, body string
		want             int
	}{
		{"unknown stage", "/stages/hourly", `{"organization_id":"acme"}`, stdhttp.StatusUnprocessableEntity},
		{"missing org", "/stages/weekly", `{}`, stdhttp.StatusBadRequest},
		{"unknown field", "/stages/weekly", `{"organization_id":"acme","org":"x"}`, stdhttp.StatusBadRequest},
		{"depth out of range", "/stages/weekly", `{"organization_id":"acme","depth":500}`, stdhttp.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := do(h, "POST", tc.path, tc.body); rec.Code != tc.want {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
			}
		})
	}
}

func TestRun_AndRuns(t *testing.T) {
	t.Parallel()

	eng, orch := &fakeEngine{}, &fakeOrch{}
	h := newServer(domain.Ports{Engine: eng, Orchestrator: orch})

	rec := do(h, "POST", "/run", `{"organization_ids":["b","a"],"backfill":true}`)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("run status=%d body=%s", rec.Code, rec.Body)
	}
	if len(orch.got.OrganizationIDs) != 2 || !orch.got.Backfill {
		t.Fatalf("orchestrator request %+v", orch.got)
	}

	rec = do(h, "GET", "/runs?organization_id=acme&stage=weekly&limit=7", "")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("runs status=%d body=%s", rec.Code, rec.Body)
	}
	if eng.runsOrg != "acme" || eng.runStage != period.Weekly || eng.limit != 7 {
		t.Fatalf("runs args %q %q %d", eng.runsOrg, eng.runStage, eng.limit)
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("envelope: %v", err)
	}

	if rec := do(h, "GET", "/runs?organization_id=acme&limit=x", ""); rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("bad limit status=%d", rec.Code)
	}
}

func TestRun_WithoutOrchestrator(t *testing.T) {
	t.Parallel()

	h := newServer(domain.Ports{Engine: &fakeEngine{}})
	if rec := do(h, "POST", "/run", `{}`); rec.Code != stdhttp.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestScopedToken(t *testing.T) {
	t.Parallel()

	eng, orch := &fakeEngine{}, &fakeOrch{}
	m := chi.NewRouter()
	m.Use(func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			ctx := pnet.WithCaller(r.Context(), pnet.Caller{User: "bot", Org: "acme"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	Register(phttp.AdaptChi(m), domain.Ports{Engine: eng, Orchestrator: orch})

	if rec := do(m, "POST", "/stages/weekly", `{"organization_id":"other"}`); rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("foreign org status=%d", rec.Code)
	}
	if rec := do(m, "POST", "/stages/weekly", `{"organization_id":"acme"}`); rec.Code != stdhttp.StatusOK {
		t.Fatalf("own org status=%d body=%s", rec.Code, rec.Body)
	}
	if rec := do(m, "POST", "/run", `{}`); rec.Code != stdhttp.StatusOK {
		t.Fatalf("run status=%d body=%s", rec.Code, rec.Body)
	}
	if len(orch.got.OrganizationIDs) != 1 || orch.got.OrganizationIDs[0] != "acme" {
		t.Fatalf("run narrowed to %v", orch.got.OrganizationIDs)
	}
	if rec := do(m, "GET", "/runs?organization_id=other", ""); rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("runs foreign org status=%d", rec.Code)
	}
}
