package masking

import "sort"

// Service applies every registered Masker to a string in a fixed order so
// redaction is deterministic regardless of which patterns fire.
type Service struct {
	maskers []Masker
}

// NewService builds a Service with the builtin PII patterns. Custom
// maskers can be appended for call sites that handle extra sensitive
// fields (e.g. a dealership's internal customer ID format).
func NewService(extra ...Masker) *Service {
	all := append(builtinPatterns(), extra...)
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
	return &Service{maskers: all}
}

// Mask runs data through every registered masker and returns the fully
// redacted string along with the names of the maskers that matched.
func (s *Service) Mask(data string) (string, []string) {
	if s == nil || data == "" {
		return data, nil
	}
	var applied []string
	for _, m := range s.maskers {
		if out, changed := m.Mask(data); changed {
			data = out
			applied = append(applied, m.Name())
		}
	}
	return data, applied
}

// MaskFields redacts a flat map of string fields in place, returning the
// set of field names that were changed. Intended for use on log
// attributes and telemetry payload snapshots before they are persisted or
// mirrored to the warehouse.
func (s *Service) MaskFields(fields map[string]string) []string {
	if s == nil {
		return nil
	}
	var touched []string
	for k, v := range fields {
		out, applied := s.Mask(v)
		if len(applied) > 0 {
			fields[k] = out
			touched = append(touched, k)
		}
	}
	sort.Strings(touched)
	return touched
}
