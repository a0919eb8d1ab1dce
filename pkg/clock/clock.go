package clock

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Offset is the system clock shifted by a fixed correction.
type Offset time.Duration

func (o Offset) Now() time.Time {
	return time.Now().Add(time.Duration(o))
}

// SyncNTP measures the local clock against server. Boards without an RTC often boot with a
// wrong date, which would end up in every file name.
func SyncNTP(server string) (Offset, error) {
	resp, err := ntp.Query(server)
	if err != nil {
		return 0, fmt.Errorf("query ntp server %s: %w", server, err)
	}
	if err = resp.Validate(); err != nil {
		return 0, fmt.Errorf("invalid ntp response from %s: %w", server, err)
	}

	return Offset(resp.ClockOffset), nil
}
