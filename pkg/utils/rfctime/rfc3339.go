// Package rfctime formats job timestamps in RFC3339 for the job api.
package rfctime

import (
	"encoding/json"
	"time"
)

// Layout used when marshalling. The offset is always numeric.
const Layout = "2006-01-02T15:04:05.999-07:00"

// RFC3339 marshals into a json string in Layout and accepts any
// RFC3339 timestamp, "Z" included, when unmarshalled.
type RFC3339 time.Time

func (t RFC3339) Time() time.Time {
	return time.Time(t)
}

func (t RFC3339) String() string {
	return time.Time(t).Format(Layout)
}

func (t RFC3339) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON leaves t untouched for null.
func (t *RFC3339) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return err
	}
	*t = RFC3339(parsed)
	return nil
}
