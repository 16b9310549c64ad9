package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/rollup"
	"pulseboard/internal/modkit/repokit"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/store"
	"pulseboard/internal/services/dailystore/domain"
)

// memFacts keeps daily and staged rows in memory
type memFacts struct {
	daily   []domain.Record
	staged  map[uuid.UUID][]domain.Record
	failIns error
	deletes int
}

func newMemFacts() *memFacts { return &memFacts{staged: map[uuid.UUID][]domain.Record{}} }

func (m *memFacts) DeleteRange(_ context.Context, org string, types []canonical.EntityType, rng domain.DateRange) error {
	m.deletes++
	kept := m.daily[:0]
	for _, r := range m.daily {
		hit := r.OrganizationID == org && rng.Contains(r.Date)
		if hit {
			hit = false
			for _, t := range types {
				if r.EntityType == t {
					hit = true
				}
			}
		}
		if !hit {
			kept = append(kept, r)
		}
	}
	m.daily = kept
	return nil
}

func (m *memFacts) Insert(_ context.Context, recs []domain.Record) error {
	if m.failIns != nil {
		return m.failIns
	}
	m.daily = append(m.daily, recs...)
	return nil
}

func (m *memFacts) Scan(_ context.Context, org string, types []canonical.EntityType, rng domain.DateRange) ([]domain.Record, error) {
	var out []domain.Record
	for _, r := range m.daily {
		if r.OrganizationID != org || !rng.Contains(r.Date) {
			continue
		}
		if len(types) > 0 {
			ok := false
			for _, t := range types {
				ok = ok || r.EntityType == t
			}
			if !ok {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

func (m *memFacts) Stage(_ context.Context, id uuid.UUID, recs []domain.Record) error {
	m.staged[id] = append([]domain.Record(nil), recs...)
	return nil
}

func (m *memFacts) Staged(_ context.Context, id uuid.UUID) ([]domain.Record, error) {
	return m.staged[id], nil
}

func (m *memFacts) DropStaged(_ context.Context, id uuid.UUID) error {
	delete(m.staged, id)
	return nil
}

type memBatches struct {
	rows []domain.Batch
}

func (b *memBatches) Create(_ context.Context, x domain.Batch) error {
	b.rows = append(b.rows, x)
	return nil
}

func (b *memBatches) Pending(_ context.Context, org string) ([]domain.Batch, error) {
	var out []domain.Batch
	for _, x := range b.rows {
		if x.OrganizationID == org && x.Status == domain.BatchStaged {
			out = append(out, x)
		}
	}
	return out, nil
}

func (b *memBatches) set(id uuid.UUID, fn func(*domain.Batch)) {
	for i := range b.rows {
		if b.rows[i].ID == id {
			fn(&b.rows[i])
		}
	}
}

func (b *memBatches) MarkApplied(_ context.Context, id uuid.UUID) error {
	b.set(id, func(x *domain.Batch) { x.Status = domain.BatchApplied })
	return nil
}

func (b *memBatches) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	b.set(id, func(x *domain.Batch) { x.Status, x.Error = domain.BatchFailed, reason })
	return nil
}

func (b *memBatches) NoteError(_ context.Context, id uuid.UUID, reason string) error {
	b.set(id, func(x *domain.Batch) { x.Error = reason })
	return nil
}

func (b *memBatches) List(_ context.Context, org string, limit int) ([]domain.Batch, error) {
	return b.Pending(context.Background(), org)
}

type nopTx struct{}

func (nopTx) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (nopTx) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (nopTx) QueryRow(context.Context, string, ...any) store.Row             { return nil }
func (n nopTx) Tx(_ context.Context, fn func(store.RowQuerier) error) error  { return fn(n) }

type inactiveSet map[string]struct{}

func (s inactiveSet) InactiveIDs(context.Context, string) (map[string]struct{}, error) { return s, nil }

func newSvc(f *memFacts, b *memBatches, active domain.ActiveFilter) *Svc {
	binder := repokit.BindFunc[domain.BatchRepo](func(repokit.Queryer) domain.BatchRepo { return b })
	s := New(nopTx{}, binder, f, active, zerolog.Nop(), nil)
	s.Now = func() time.Time { return time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC) }
	return s
}

func day(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }

func rec(id string, d int, sessions float64) domain.Record {
	var v rollup.Values
	v.Set(rollup.Sessions, sessions)
	return domain.Record{
		OrganizationID: "acme", EntityID: id, EntityType: canonical.Page,
		Date: day(d), Values: v, Source: canonical.GA4,
	}
}

var pages = []canonical.EntityType{canonical.Page}

func TestReplaceRange_ReplacesSliceOnly(t *testing.T) {
	t.Parallel()

	f := newMemFacts()
	f.daily = []domain.Record{
		rec("page_a", 1, 1), rec("page_a", 5, 5),
		{OrganizationID: "acme", EntityID: "email_x", EntityType: canonical.Email, Date: day(2), Source: canonical.ActiveCampaign},
	}
	s := newSvc(f, &memBatches{}, nil)

	n, err := s.ReplaceRange(context.Background(), "acme", pages, domain.NewDateRange(day(1), day(3)), []domain.Record{rec("page_a", 2, 20)})
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	got, _ := f.Scan(context.Background(), "acme", nil, domain.NewDateRange(day(1), day(31)))
	if len(got) != 3 {
		t.Fatalf("rows %+v", got)
	}
	for _, r := range got {
		if r.EntityID == "page_a" && r.Date.Equal(day(1)) {
			t.Fatal("day 1 row should be replaced")
		}
	}
}

func TestReplaceRange_Validation(t *testing.T) {
	t.Parallel()

	rng := domain.NewDateRange(day(1), day(3))
	cases := []struct {
		name  string
		types []canonical.EntityType
		rng   domain.DateRange
		rows  []domain.Record
	}{
		{"empty filter", nil, rng, nil},
		{"inverted range", pages, domain.NewDateRange(day(3), day(1)), nil},
		{"outside range", pages, rng, []domain.Record{rec("page_a", 9, 1)}},
		{"outside types", []canonical.EntityType{canonical.Email}, rng, []domain.Record{rec("page_a", 1, 1)}},
		{"duplicate key", pages, rng, []domain.Record{rec("page_a", 1, 1), rec("page_a", 1, 2)}},
		{"missing id", pages, rng, []domain.Record{rec("", 1, 1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newMemFacts()
			s := newSvc(f, &memBatches{}, nil)
			_, err := s.ReplaceRange(context.Background(), "acme", tc.types, tc.rng, tc.rows)
			if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
				t.Fatalf("want invalid argument, got %v", err)
			}
			if f.deletes != 0 {
				t.Fatal("nothing may be deleted when validation fails")
			}
		})
	}
}

func TestReplaceRange_SameDayDifferentDimensionIsUnique(t *testing.T) {
	t.Parallel()

	a, b := rec("page_a", 1, 1), rec("page_a", 1, 2)
	a.Dimension, b.Dimension = "desktop", "mobile"
	s := newSvc(newMemFacts(), &memBatches{}, nil)
	if _, err := s.ReplaceRange(context.Background(), "acme", pages, domain.NewDateRange(day(1), day(1)), []domain.Record{a, b}); err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}
}

func TestScan_ActiveOnly(t *testing.T) {
	t.Parallel()

	f := newMemFacts()
	f.daily = []domain.Record{rec("page_a", 1, 1), rec("page_b", 1, 2)}
	s := newSvc(f, &memBatches{}, inactiveSet{"page_b": {}})
	rng := domain.NewDateRange(day(1), day(1))

	all, err := s.Scan(context.Background(), "acme", nil, rng, false)
	if err != nil || len(all) != 2 {
		t.Fatalf("all=%d err=%v", len(all), err)
	}
	active, err := s.Scan(context.Background(), "acme", nil, rng, true)
	if err != nil || len(active) != 1 || active[0].EntityID != "page_a" {
		t.Fatalf("active=%+v err=%v", active, err)
	}
}

func TestStageAndApply_Converges(t *testing.T) {
	t.Parallel()

	f := newMemFacts()
	b := &memBatches{}
	s := newSvc(f, b, nil)
	ctx := context.Background()

	first, err := s.Stage(ctx, "acme", canonical.GA4, nil, domain.DateRange{}, []domain.Record{rec("page_a", 1, 1), rec("page_a", 2, 2)})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(first.EntityTypes) != 1 || first.EntityTypes[0] != canonical.Page || !first.Range.From.Equal(day(1)) || !first.Range.To.Equal(day(2)) {
		t.Fatalf("batch %+v", first)
	}
	// a later run over the same range drops page_a on day 2
	if _, err := s.Stage(ctx, "acme", canonical.GA4, nil, domain.NewDateRange(day(1), day(2)), []domain.Record{rec("page_a", 1, 10)}); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	rep, err := s.ApplyPending(ctx, "acme")
	if err != nil {
		t.Fatalf("ApplyPending: %v", err)
	}
	if rep.Batches != 2 || rep.Rows != 3 || rep.Failed != 0 {
		t.Fatalf("report %+v", rep)
	}
	if len(f.daily) != 1 {
		t.Fatalf("daily %+v", f.daily)
	}
	if v, _ := f.daily[0].Values.Get(rollup.Sessions); v != 10 {
		t.Fatalf("latest batch should win, got %v", v)
	}
	if len(f.staged) != 0 {
		t.Fatal("staging rows should be dropped after apply")
	}

	// draining again is a no-op
	rep, err = s.ApplyPending(ctx, "acme")
	if err != nil || rep.Batches != 0 {
		t.Fatalf("second drain %+v %v", rep, err)
	}
}

func TestStage_ReplacesOnlyCarriedTypes(t *testing.T) {
	t.Parallel()

	f := newMemFacts()
	s := newSvc(f, &memBatches{}, nil)
	ctx := context.Background()

	src := rec("traffic_source_google_organic", 2, 7)
	src.EntityType = canonical.TrafficSource
	if _, err := s.Stage(ctx, "acme", canonical.GA4, nil, domain.DateRange{}, []domain.Record{src}); err != nil {
		t.Fatalf("Stage traffic: %v", err)
	}
	if _, err := s.ApplyPending(ctx, "acme"); err != nil {
		t.Fatal(err)
	}

	b, err := s.Stage(ctx, "acme", canonical.GA4, nil, domain.NewDateRange(day(2), day(2)), []domain.Record{rec("page_a", 2, 3)})
	if err != nil {
		t.Fatalf("Stage pages: %v", err)
	}
	if len(b.EntityTypes) != 1 || b.EntityTypes[0] != canonical.Page {
		t.Fatalf("pages-only batch filter %v", b.EntityTypes)
	}
	if _, err := s.ApplyPending(ctx, "acme"); err != nil {
		t.Fatal(err)
	}

	got, _ := f.Scan(ctx, "acme", []canonical.EntityType{canonical.TrafficSource}, domain.NewDateRange(day(2), day(2)))
	if len(got) != 1 {
		t.Fatalf("traffic_source rows after pages-only batch: %d", len(got))
	}
	if pg, _ := f.Scan(ctx, "acme", pages, domain.NewDateRange(day(2), day(2))); len(pg) != 1 {
		t.Fatalf("page rows %+v", pg)
	}
}

func TestStage_ExplicitTypes(t *testing.T) {
	t.Parallel()

	s := newSvc(newMemFacts(), &memBatches{}, nil)
	ctx := context.Background()
	rng := domain.NewDateRange(day(1), day(1))

	// an empty export clears the named type only
	b, err := s.Stage(ctx, "acme", canonical.GA4, []canonical.EntityType{canonical.TrafficSource}, rng, nil)
	if err != nil || len(b.EntityTypes) != 1 || b.EntityTypes[0] != canonical.TrafficSource {
		t.Fatalf("batch %+v err=%v", b, err)
	}
	if _, err := s.Stage(ctx, "acme", canonical.GA4, nil, rng, nil); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("empty batch without types: %v", err)
	}
	if _, err := s.Stage(ctx, "acme", canonical.GA4, []canonical.EntityType{canonical.Email}, rng, nil); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("foreign type: %v", err)
	}
	// rows outside the named types are rejected
	if _, err := s.Stage(ctx, "acme", canonical.GA4, []canonical.EntityType{canonical.TrafficSource}, rng, []domain.Record{rec("page_a", 1, 1)}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("row outside types: %v", err)
	}
}

func TestStage_RejectsForeignTypes(t *testing.T) {
	t.Parallel()

	s := newSvc(newMemFacts(), &memBatches{}, nil)
	r := rec("email_x", 1, 1)
	r.EntityType, r.Source = canonical.Email, ""
	_, err := s.Stage(context.Background(), "acme", canonical.GA4, nil, domain.DateRange{}, []domain.Record{r})
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("want invalid argument, got %v", err)
	}
}

func TestApplyPending_StorageFailureKeepsBatchStaged(t *testing.T) {
	t.Parallel()

	f := newMemFacts()
	b := &memBatches{}
	s := newSvc(f, b, nil)
	ctx := context.Background()
	if _, err := s.Stage(ctx, "acme", canonical.GA4, nil, domain.DateRange{}, []domain.Record{rec("page_a", 1, 1)}); err != nil {
		t.Fatal(err)
	}

	f.failIns = errors.New("clickhouse down")
	if _, err := s.ApplyPending(ctx, "acme"); !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("want db error, got %v", err)
	}
	if b.rows[0].Status != domain.BatchStaged || b.rows[0].Error == "" {
		t.Fatalf("batch %+v", b.rows[0])
	}

	f.failIns = nil
	rep, err := s.ApplyPending(ctx, "acme")
	if err != nil || rep.Batches != 1 || len(f.daily) != 1 {
		t.Fatalf("retry rep=%+v err=%v daily=%d", rep, err, len(f.daily))
	}
}

func TestApplyPending_InvalidBatchMarkedFailed(t *testing.T) {
	t.Parallel()

	f := newMemFacts()
	b := &memBatches{}
	s := newSvc(f, b, nil)
	id := uuid.New()
	f.staged[id] = []domain.Record{rec("page_a", 1, 1), rec("page_a", 1, 1)}
	b.rows = []domain.Batch{{
		ID: id, OrganizationID: "acme", Source: canonical.GA4, EntityTypes: pages,
		Range: domain.NewDateRange(day(1), day(1)), Rows: 2, Status: domain.BatchStaged,
	}}

	rep, err := s.ApplyPending(context.Background(), "acme")
	if err != nil || rep.Failed != 1 {
		t.Fatalf("rep=%+v err=%v", rep, err)
	}
	if b.rows[0].Status != domain.BatchFailed {
		t.Fatalf("status %s", b.rows[0].Status)
	}
}
