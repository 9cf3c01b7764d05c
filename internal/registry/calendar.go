package registry

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"eduadmin/internal/eventbus"
	"eduadmin/internal/model"
	"eduadmin/internal/schedule"
)

// ---- Holidays ----

// AddHoliday registers a blackout date. Existing courses keep their schedule
// until RegenerateSchedules runs.
func (r *Registry) AddHoliday(ctx context.Context, date, name string) (model.Holiday, error) {
	in := holidayInput{Date: date, Name: name}
	if err := r.check(in); err != nil {
		return model.Holiday{}, err
	}
	t, _ := schedule.ParseDate(date)
	h := model.Holiday{Date: schedule.FormatDate(t), Name: strings.TrimSpace(name)}
	h.ID = "holiday-" + h.Date
	err := r.mutate(ctx, change{eventbus.CalendarChanged, "holiday-add", h.ID}, func(d *model.Data) error {
		for _, x := range d.Holidays {
			if x.Date == h.Date {
				return fmt.Errorf("holiday on %s (%s): %w", h.Date, x.Name, ErrConflict)
			}
		}
		d.Holidays = append(d.Holidays, h)
		sortHolidays(d.Holidays)
		return nil
	})
	if err != nil {
		return model.Holiday{}, err
	}
	return h, nil
}

// DeleteHoliday removes a holiday by ID or by date.
func (r *Registry) DeleteHoliday(ctx context.Context, idOrDate string) error {
	return r.mutate(ctx, change{eventbus.CalendarChanged, "holiday-delete", idOrDate}, func(d *model.Data) error {
		i := slices.IndexFunc(d.Holidays, func(h model.Holiday) bool { return h.ID == idOrDate || h.Date == idOrDate })
		if i < 0 {
			return notFound("holiday", idOrDate)
		}
		d.Holidays = slices.Delete(d.Holidays, i, i+1)
		return nil
	})
}

// Holidays lists holidays of year (0 = all), ordered by date.
func (r *Registry) Holidays(year int) []model.Holiday {
	prefix := ""
	if year > 0 {
		prefix = fmt.Sprintf("%04d-", year)
	}
	var out []model.Holiday
	r.view(func(d *model.Data) {
		for _, h := range d.Holidays {
			if strings.HasPrefix(h.Date, prefix) {
				out = append(out, h)
			}
		}
	})
	sortHolidays(out)
	return out
}

// SeedHolidays replaces the holidays of year with the standard list.
func (r *Registry) SeedHolidays(ctx context.Context, year int) ([]model.Holiday, error) {
	if year < 1000 || year > 9999 {
		return nil, invalid("year", "must be a four-digit year")
	}
	seed := model.DefaultHolidays(year)
	prefix := fmt.Sprintf("%04d-", year)
	err := r.mutate(ctx, change{eventbus.CalendarChanged, "holiday-seed", prefix[:4]}, func(d *model.Data) error {
		d.Holidays = slices.DeleteFunc(d.Holidays, func(h model.Holiday) bool { return strings.HasPrefix(h.Date, prefix) })
		d.Holidays = append(d.Holidays, seed...)
		sortHolidays(d.Holidays)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seed, nil
}

// Blackouts is the holiday registry as a generator blackout set.
func (r *Registry) Blackouts() schedule.BlackoutSet {
	var out schedule.BlackoutSet
	r.view(func(d *model.Data) { out = d.Blackouts() })
	return out
}

func sortHolidays(hs []model.Holiday) {
	sort.SliceStable(hs, func(i, j int) bool { return hs[i].Date < hs[j].Date })
}

// ---- Time slots ----

func (r *Registry) TimeSlots() []model.TimeSlot {
	var out []model.TimeSlot
	r.view(func(d *model.Data) { out = slices.Clone(d.TimeSlots) })
	return out
}

// AddTimeSlot adds a slot; IDs are unique.
func (r *Registry) AddTimeSlot(ctx context.Context, id, hhmm string) (model.TimeSlot, error) {
	in := slotInput{ID: strings.TrimSpace(id), Time: strings.TrimSpace(hhmm)}
	if err := r.check(in); err != nil {
		return model.TimeSlot{}, err
	}
	if strings.ContainsAny(in.ID, " \t") {
		return model.TimeSlot{}, invalid("id", "must not contain spaces")
	}
	s := model.TimeSlot{ID: in.ID, Time: in.Time}
	err := r.mutate(ctx, change{eventbus.CalendarChanged, "slot-add", s.ID}, func(d *model.Data) error {
		for _, x := range d.TimeSlots {
			if strings.EqualFold(x.ID, s.ID) {
				return fmt.Errorf("time slot %q: %w", s.ID, ErrConflict)
			}
		}
		d.TimeSlots = append(d.TimeSlots, s)
		return nil
	})
	if err != nil {
		return model.TimeSlot{}, err
	}
	return s, nil
}

// DeleteTimeSlot removes a slot. The last remaining slot cannot be removed.
// Courses keep the label they were created with.
func (r *Registry) DeleteTimeSlot(ctx context.Context, id string) error {
	return r.mutate(ctx, change{eventbus.CalendarChanged, "slot-delete", id}, func(d *model.Data) error {
		i := slices.IndexFunc(d.TimeSlots, func(s model.TimeSlot) bool { return strings.EqualFold(s.ID, id) })
		if i < 0 {
			return notFound("time slot", id)
		}
		if len(d.TimeSlots) == 1 {
			return fmt.Errorf("time slot %q is the last one: %w", id, ErrConflict)
		}
		d.TimeSlots = slices.Delete(d.TimeSlots, i, i+1)
		return nil
	})
}

// ---- Events ----

func (r *Registry) AddEvent(ctx context.Context, in EventInput) (model.Event, error) {
	if err := r.check(in); err != nil {
		return model.Event{}, err
	}
	e := eventFrom(in)
	e.ID = r.newID()
	err := r.mutate(ctx, change{eventbus.CalendarChanged, "event-add", e.ID}, func(d *model.Data) error {
		d.Events = append(d.Events, e)
		return nil
	})
	if err != nil {
		return model.Event{}, err
	}
	return e, nil
}

func (r *Registry) UpdateEvent(ctx context.Context, id string, in EventInput) (model.Event, error) {
	if err := r.check(in); err != nil {
		return model.Event{}, err
	}
	var out model.Event
	err := r.mutate(ctx, change{eventbus.CalendarChanged, "event-update", id}, func(d *model.Data) error {
		i := slices.IndexFunc(d.Events, func(e model.Event) bool { return e.ID == id })
		if i < 0 {
			return notFound("event", id)
		}
		e := eventFrom(in)
		e.ID, e.IsCourse = id, d.Events[i].IsCourse
		d.Events[i] = e
		out = e
		return nil
	})
	return out, err
}

func (r *Registry) DeleteEvent(ctx context.Context, id string) error {
	return r.mutate(ctx, change{eventbus.CalendarChanged, "event-delete", id}, func(d *model.Data) error {
		i := slices.IndexFunc(d.Events, func(e model.Event) bool { return e.ID == id })
		if i < 0 {
			return notFound("event", id)
		}
		d.Events = slices.Delete(d.Events, i, i+1)
		return nil
	})
}

// EventsOn returns the events of date ordered by time.
func (r *Registry) EventsOn(date time.Time) []model.Event {
	day := schedule.FormatDate(date)
	var out []model.Event
	r.view(func(d *model.Data) { out = eventsOn(d, day) })
	return out
}

func eventsOn(d *model.Data, day string) []model.Event {
	var out []model.Event
	for _, e := range d.Events {
		if e.Date == day {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func eventFrom(in EventInput) model.Event {
	t, _ := schedule.ParseDate(in.Date)
	return model.Event{
		Title: strings.TrimSpace(in.Title),
		Date:  schedule.FormatDate(t),
		Time:  strings.TrimSpace(in.Time),
	}
}

// ---- Month view ----

// Cell is one day of the month grid.
type Cell struct {
	Date    time.Time     `json:"date"`
	InMonth bool          `json:"inMonth"`
	Today   bool          `json:"today"`
	Holiday string        `json:"holiday,omitempty"`
	Lessons []Lesson      `json:"lessons,omitempty"`
	Events  []model.Event `json:"events,omitempty"`
}

// MonthGrid is a six-week calendar page starting on Sunday.
type MonthGrid struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Cells [42]Cell   `json:"cells"`
}

// Month builds the calendar page for year/month: the week containing the
// first of the month through 42 days.
func (r *Registry) Month(year int, month time.Month) (MonthGrid, error) {
	if month < time.January || month > time.December {
		return MonthGrid{}, invalid("month", "must be 1-12")
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	today := r.Today()

	g := MonthGrid{Year: year, Month: month}
	r.view(func(d *model.Data) {
		names := make(map[string]string, len(d.Holidays))
		for _, h := range d.Holidays {
			names[h.Date] = h.Name
		}
		for i := range g.Cells {
			day := start.AddDate(0, 0, i)
			key := schedule.FormatDate(day)
			g.Cells[i] = Cell{
				Date:    day,
				InMonth: day.Month() == month,
				Today:   day.Equal(today),
				Holiday: names[key],
				Lessons: lessonsOn(d, key),
				Events:  eventsOn(d, key),
			}
		}
	})
	return g, nil
}
