package stats

import (
	"time"

	"github.com/ncruces/go-strftime"
)

// CreatedAtFormat renders UTC timestamps with fixed-width nanoseconds so run
// index entries order correctly as plain strings.
const CreatedAtFormat = "%Y-%m-%dT%H:%M:%S.%NZ"

func FormatCreatedAt(t time.Time) string {
	return strftime.Format(CreatedAtFormat, t.UTC())
}

func ParseCreatedAt(value string) (time.Time, error) {
	return strftime.Parse(CreatedAtFormat, value)
}
