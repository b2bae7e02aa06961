package employee

import "time"

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

// SystemClock は Location で表した現在時刻を返します。月の境界は Location で判定されます。
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}
