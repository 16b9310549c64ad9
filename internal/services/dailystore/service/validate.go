package service

import (
	"slices"

	"pulseboard/internal/core/canonical"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/validate"
	"pulseboard/internal/services/dailystore/domain"
)

// checkRows enforces the replace-range contract: every row sits inside the filter and
// natural keys are unique
func checkRows(org string, types []canonical.EntityType, rng domain.DateRange, rows []domain.Record) error {
	seen := make(map[domain.NaturalKey]struct{}, len(rows))
	for i := range rows {
		r := &rows[i]
		if err := validate.Struct(r); err != nil {
			return perr.InvalidArgf("row %d: %s", i, validate.Message(err))
		}
		if r.OrganizationID != org {
			return perr.InvalidArgf("row %d: organization %q outside filter %q", i, r.OrganizationID, org)
		}
		if !slices.Contains(types, r.EntityType) {
			return perr.InvalidArgf("row %d: entity type %s outside filter", i, r.EntityType)
		}
		if !rng.Contains(r.Date) {
			return perr.InvalidArgf("row %d: date %s outside %s", i, r.Date.Format("2006-01-02"), rng)
		}
		if m, ok := r.Values.Finite(); !ok {
			return perr.InvalidArgf("row %d: %s is not finite", i, m)
		}
		k := r.Key()
		if _, dup := seen[k]; dup {
			return perr.InvalidArgf("row %d: duplicate natural key %s/%s/%s/%q",
				i, r.EntityType, r.EntityID, r.Date.Format("2006-01-02"), r.Dimension)
		}
		seen[k] = struct{}{}
	}
	return nil
}
