package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pulseboard/internal/core/period"
	"pulseboard/internal/modkit/scope"
	"pulseboard/internal/services/orchestrator/domain"
	rdom "pulseboard/internal/services/rollup/domain"
)

// fakeEngine records calls and returns scripted outcomes per (org, stage)
type fakeEngine struct {
	mu     sync.Mutex
	calls  map[string][]period.Granularity
	fail   map[string]bool // "org/stage"
	held   map[string]bool
	during func(ctx context.Context, org string, stage period.Granularity)
}

func newEngine() *fakeEngine {
	return &fakeEngine{calls: map[string][]period.Granularity{}, fail: map[string]bool{}, held: map[string]bool{}}
}

func (f *fakeEngine) RunStage(ctx context.Context, req rdom.Request) (rdom.StageResult, error) {
	f.mu.Lock()
	f.calls[req.OrganizationID] = append(f.calls[req.OrganizationID], req.Stage)
	k := req.OrganizationID + "/" + string(req.Stage)
	fail, held, during := f.fail[k], f.held[k], f.during
	f.mu.Unlock()

	if during != nil {
		during(ctx, req.OrganizationID, req.Stage)
	}
	res := rdom.StageResult{OrganizationID: req.OrganizationID, Stage: req.Stage, Outcome: rdom.OutcomeOK, Rows: 1,
		Periods: []rdom.PeriodResult{{PeriodKey: "k"}}}
	switch {
	case fail:
		res.Outcome = rdom.OutcomeFailed
		return res, errors.New("boom")
	case held:
		res.Outcome = rdom.OutcomeSkipped
	}
	return res, nil
}

func (f *fakeEngine) stages(org string) []period.Granularity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]period.Granularity(nil), f.calls[org]...)
}

type orgList []string

func (o orgList) Organizations(context.Context) ([]string, error) { return o, nil }

func newSvc(e *fakeEngine, orgs ...string) *Svc {
	return New(e, orgList(orgs), Config{Workers: 2, StageTimeout: time.Minute}, zerolog.Nop())
}

func statuses(rep domain.Report, org string) []string {
	var out []string
	for _, o := range rep.Outcomes {
		if o.OrganizationID == org {
			out = append(out, o.Status)
		}
	}
	return out
}

func TestRun_FixedOrderPerOrganization(t *testing.T) {
	t.Parallel()

	e := newEngine()
	rep, err := newSvc(e, "globex", "acme", "initech", "acme").Run(context.Background(), domain.RunRequest{})
	if err != nil {
		t.Fatal(err)
	}
	for _, org := range []string{"acme", "globex", "initech"} {
		if got := e.stages(org); !reflect.DeepEqual(got, period.Order) {
			t.Fatalf("%s ran %v", org, got)
		}
	}
	if len(rep.Outcomes) != 15 || rep.Failed != 0 || rep.Skipped != 0 {
		t.Fatalf("report %+v", rep)
	}
	if rep.Outcomes[0].OrganizationID != "acme" || rep.Outcomes[5].OrganizationID != "globex" {
		t.Fatal("outcomes not grouped by organization in lexical order")
	}
}

func TestRun_DependencySkips(t *testing.T) {
	t.Parallel()

	ok, fail, skip := rdom.OutcomeOK, rdom.OutcomeFailed, rdom.OutcomeSkipped
	cases := []struct {
		failing period.Granularity
		want    []string
	}{
		{period.Daily, []string{fail, skip, skip, skip, skip}},
		{period.Weekly, []string{ok, fail, ok, ok, ok}},
		{period.Monthly, []string{ok, ok, fail, skip, skip}},
		{period.L12M, []string{ok, ok, ok, fail, ok}},
	}
	for _, c := range cases {
		e := newEngine()
		e.fail["acme/"+string(c.failing)] = true
		rep, err := newSvc(e, "acme", "globex").Run(context.Background(), domain.RunRequest{})
		if err != nil {
			t.Fatal(err)
		}
		if got := statuses(rep, "acme"); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("%s failing: got %v want %v", c.failing, got, c.want)
		}
		if got := statuses(rep, "globex"); !reflect.DeepEqual(got, []string{ok, ok, ok, ok, ok}) {
			t.Fatalf("%s failing leaked into globex: %v", c.failing, got)
		}
		if rep.Failed != 1 {
			t.Fatalf("failed=%d", rep.Failed)
		}
	}
}

func TestRun_LeaseHeldDoesNotBlock(t *testing.T) {
	t.Parallel()

	e := newEngine()
	e.held["acme/daily"] = true
	rep, err := newSvc(e, "acme").Run(context.Background(), domain.RunRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Outcomes[0].Status != rdom.OutcomeSkipped || rep.Outcomes[0].Reason != domain.ReasonLeaseHeld {
		t.Fatalf("daily %+v", rep.Outcomes[0])
	}
	if len(e.stages("acme")) != 5 || rep.Skipped != 1 {
		t.Fatalf("held lease blocked downstream: %v", e.stages("acme"))
	}
}

func TestRun_CancellationFinishesInFlightStage(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := newEngine()
	var stageCtxErr error
	e.during = func(sctx context.Context, _ string, stage period.Granularity) {
		if stage == period.Weekly {
			cancel()
			stageCtxErr = sctx.Err()
		}
	}
	svc := New(e, nil, Config{Workers: 1, StageTimeout: time.Minute}, zerolog.Nop())
	rep, err := svc.Run(ctx, domain.RunRequest{OrganizationIDs: []string{"acme"}})
	if err != nil {
		t.Fatal(err)
	}
	if stageCtxErr != nil {
		t.Fatalf("in-flight stage saw cancellation: %v", stageCtxErr)
	}
	want := []string{rdom.OutcomeOK, rdom.OutcomeOK, rdom.OutcomeSkipped, rdom.OutcomeSkipped, rdom.OutcomeSkipped}
	if got := statuses(rep, "acme"); !reflect.DeepEqual(got, want) {
		t.Fatalf("statuses %v", got)
	}
	if !rep.Canceled || rep.Outcomes[2].Reason != domain.ReasonCanceled {
		t.Fatalf("report %+v", rep)
	}
}

func TestRun_Targets(t *testing.T) {
	t.Parallel()

	svc := New(newEngine(), nil, Config{}, zerolog.Nop())
	if _, err := svc.Run(context.Background(), domain.RunRequest{}); err == nil {
		t.Fatal("no ids and no organization source must fail")
	}
	if svc.cfg.Workers != 4 {
		t.Fatalf("default workers %d", svc.cfg.Workers)
	}

	asOf := time.Date(2025, 6, 1, 15, 4, 0, 0, time.UTC)
	rep, err := svc.Run(context.Background(), domain.RunRequest{OrganizationIDs: []string{"acme", ""}, AsOf: asOf})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Outcomes) != 5 || !rep.AsOf.Equal(period.Date(asOf)) {
		t.Fatalf("report %+v", rep)
	}
}

func TestSchedule(t *testing.T) {
	t.Parallel()

	e := newEngine()
	svc := newSvc(e, "acme")
	if _, err := svc.Schedule(context.Background(), "every tuesday"); err == nil {
		t.Fatal("bad spec accepted")
	}
	c, err := svc.Schedule(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	entries := c.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries %d", len(entries))
	}
	entries[0].WrappedJob.Run()
	if len(e.stages("acme")) != 5 {
		t.Fatalf("scheduled job ran %v", e.stages("acme"))
	}
}

func TestRun_StampsRunIDOnStageContext(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := map[string]bool{}
	e := newEngine()
	e.during = func(ctx context.Context, _ string, _ period.Granularity) {
		id, _ := scope.Get(ctx, scope.RunID)
		mu.Lock()
		seen[id] = true
		mu.Unlock()
	}
	rep, err := newSvc(e, "acme", "globex").Run(context.Background(), domain.RunRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || !seen[rep.RunID.String()] {
		t.Fatalf("stage contexts saw run ids %v, want only %s", seen, rep.RunID)
	}
}
