package filter

import "github.com/kailas-cloud/docbase/internal/domain"

// datetimeFilter builds the mandatory "datetime" filter against clock:
// encode converts an RFC3339 timestamp string (it must carry an offset) to
// the process-wide default zone and re-emits it in the canonical form (null
// passes through, parse failures, including strings without an offset,
// return the value unchanged); decode converts to the UTC-tagged form.
func datetimeFilter(clock domain.Clock) Filter {
	return Filter{
		Encode: func(value any, _ domain.Document, _ any) any {
			if value == nil {
				return nil
			}
			s, ok := value.(string)
			if !ok {
				return value
			}
			return clock.Canonicalize(s)
		},
		Decode: func(value any, _ domain.Document, _ any) any {
			if value == nil {
				return nil
			}
			s, ok := value.(string)
			if !ok {
				return value
			}
			return clock.ToUTC(s)
		},
	}
}
