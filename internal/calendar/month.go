package calendar

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"schedview/internal/model"
)

var weekdayNames = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// Cell is one square of a month grid. Blank cells pad the first and last week.
type Cell struct {
	Blank    bool `json:"blank"`
	Day      Day  `json:"day"`
	Saturday bool `json:"saturday"`
	Sunday   bool `json:"sunday"`
}

// Month is a rendered month for one owner.
type Month struct {
	First    model.Date `json:"first"`
	Title    string     `json:"title"`
	Weekdays []string   `json:"weekdays"`
	Weeks    [][]Cell   `json:"weeks"`
}

// Month builds the grid of the month containing first.
func (a *Assembler) Month(ds *model.Dataset, owner string, first, today model.Date) Month {
	first = first.FirstOfMonth()
	holidays := a.Oracle.HolidaysFor(first.Year, first.Month)

	m := Month{
		First:    first,
		Title:    first.Time().Format("2006年01月"),
		Weekdays: a.weekdayHeader(),
	}

	lead := (int(first.Weekday()) - int(a.WeekStart) + 7) % 7
	week := make([]Cell, 0, 7)
	for i := 0; i < lead; i++ {
		week = append(week, Cell{Blank: true})
	}
	for d := first; d.Month == first.Month; d = d.AddDays(1) {
		week = append(week, Cell{
			Day:      evaluate(ds, owner, d, today, holidays),
			Saturday: d.Weekday() == time.Saturday,
			Sunday:   d.Weekday() == time.Sunday,
		})
		if len(week) == 7 {
			m.Weeks = append(m.Weeks, week)
			week = make([]Cell, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, Cell{Blank: true})
		}
		m.Weeks = append(m.Weeks, week)
	}
	return m
}

func (a *Assembler) weekdayHeader() []string {
	out := make([]string, 7)
	for i := range out {
		out[i] = weekdayNames[(int(a.WeekStart)+i)%7]
	}
	return out
}

// Calendar renders every month spanned by the dataset. Months are built
// concurrently and returned in order.
func (a *Assembler) Calendar(ctx context.Context, ds *model.Dataset, owner string, today model.Date) ([]Month, error) {
	firsts := ds.Months()
	out := make([]Month, len(firsts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, first := range firsts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = a.Month(ds, owner, first, today)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
