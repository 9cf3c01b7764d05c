package schedule

import (
	"fmt"
	"time"
)

const (
	// The walk gives up after boundFactor times the span the schedule would need
	// without blackouts, but never before minBoundDays.
	boundFactor  = 10
	minBoundDays = 366
)

// Generate produces exactly req.TotalLessons lesson dates.
//
// Errors wrap ErrInvalidRequest, ErrInvalidCadence or ErrScheduleUnreachable.
func Generate(req Request) (Schedule, error) {
	if req.TotalLessons < 1 {
		return nil, fmt.Errorf("%w: total lessons must be >= 1, got %d", ErrInvalidRequest, req.TotalLessons)
	}
	if req.TotalLessons > MaxLessons {
		return nil, fmt.Errorf("%w: total lessons must be <= %d, got %d", ErrInvalidRequest, MaxLessons, req.TotalLessons)
	}
	if req.Start.IsZero() {
		return nil, fmt.Errorf("%w: start date required", ErrInvalidRequest)
	}

	c := req.Cadence
	if c == nil {
		c = DefaultIntensive()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	start := Day(req.Start)
	switch v := c.(type) {
	case Weekly:
		return weekly(start, req.TotalLessons, v, req.Blackouts)
	case *Weekly:
		return weekly(start, req.TotalLessons, *v, req.Blackouts)
	case Intensive:
		return intensive(start, req.TotalLessons, v, req.Blackouts)
	case *Intensive:
		return intensive(start, req.TotalLessons, *v, req.Blackouts)
	default:
		return nil, fmt.Errorf("%w: unsupported cadence %T", ErrInvalidCadence, c)
	}
}

func boundDays(naive int) int {
	return max(naive*boundFactor, minBoundDays)
}

// weekly visits Start's first matching weekday, then every 7th day after it.
// A blackout candidate is dropped, not shifted.
func weekly(start time.Time, total int, c Weekly, blackouts BlackoutSet) (Schedule, error) {
	offset := (int(c.Day) - int(start.Weekday()) + 7) % 7
	cur := start.AddDate(0, 0, offset)
	limit := boundDays(total * 7)

	out := make(Schedule, 0, total)
	for walked := offset; len(out) < total; walked += 7 {
		if walked > limit {
			return nil, unreachable(c, total, len(out), limit)
		}
		if !blackouts.Has(cur) {
			out = append(out, cur)
		}
		cur = cur.AddDate(0, 0, 7)
	}
	return out, nil
}

// intensive walks day by day through work/rest blocks. Every work-phase day
// counts towards the block, blackout or not.
func intensive(start time.Time, total int, c Intensive, blackouts BlackoutSet) (Schedule, error) {
	blocks := (total + c.WorkDays - 1) / c.WorkDays
	limit := boundDays(blocks * (c.WorkDays + c.RestDays))

	var (
		worked  int
		rested  int
		working = true
		cur     = start
	)
	out := make(Schedule, 0, total)
	for walked := 0; len(out) < total; walked++ {
		if walked > limit {
			return nil, unreachable(c, total, len(out), limit)
		}
		if working {
			if !blackouts.Has(cur) {
				out = append(out, cur)
			}
			worked++
			if worked >= c.WorkDays {
				worked = 0
				// RestDays == 0: the next day starts a new work block.
				working = c.RestDays == 0
			}
		} else {
			rested++
			if rested >= c.RestDays {
				rested = 0
				working = true
			}
		}
		cur = cur.AddDate(0, 0, 1)
	}
	return out, nil
}

func unreachable(c Cadence, total, got, limit int) error {
	return fmt.Errorf("%w: %s found %d of %d lessons within %d days", ErrScheduleUnreachable, c, got, total, limit)
}
