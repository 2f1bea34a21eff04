package vocabulary

import (
	"context"
)

// ConfigRefs names the vocabulary entities one sensor config entry
// references. Empty fields are unreferenced and skipped.
type ConfigRefs struct {
	ObservedProperty     string
	Unit                 string
	HasFeatureOfInterest string
	Disciplines          []string
	UsedProcedures       []string
}

// CheckRefs verifies every referenced entity exists and is active,
// returning the first NotFound.
func (s *Store) CheckRefs(ctx context.Context, refs ConfigRefs) error {
	if refs.ObservedProperty != "" {
		if err := s.Exists(ctx, KindObservableProperty, refs.ObservedProperty); err != nil {
			return err
		}
	}
	if refs.Unit != "" {
		if err := s.Exists(ctx, KindUnit, refs.Unit); err != nil {
			return err
		}
	}
	if refs.HasFeatureOfInterest != "" {
		if err := s.Exists(ctx, KindFeatureOfInterest, refs.HasFeatureOfInterest); err != nil {
			return err
		}
	}
	for _, d := range refs.Disciplines {
		if err := s.Exists(ctx, KindDiscipline, d); err != nil {
			return err
		}
	}
	for _, p := range refs.UsedProcedures {
		if err := s.Exists(ctx, KindProcedure, p); err != nil {
			return err
		}
	}
	return nil
}
