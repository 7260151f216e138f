package schoolmeal

import (
	"fmt"
	"strings"
	"time"

	"github/martinmaurice/apipoller/pkg/rate_limiter"
)

// Normalize builds the weekday keyed menu from the first week of raw.
func Normalize(raw *RawMenu, year, week int, lastModified time.Time) (*Menu, error) {
	if raw == nil || len(raw.Weeks) == 0 {
		return nil, fmt.Errorf("%w: menu has no weeks", rate_limiter.MalformedResponseErr)
	}

	menu := &Menu{
		Year: year,
		Week: week,
		School: School{
			ID:       raw.School.ID,
			Name:     raw.School.Name,
			URLName:  raw.School.URLName,
			ImageURL: raw.School.ImageURL,
		},
		Days:      make(map[string]Day, len(raw.Weeks[0].Days)),
		Bulletins: raw.Bulletins,
	}
	if !lastModified.IsZero() {
		menu.LastModified = lastModified.UnixMilli()
	}

	for _, d := range raw.Weeks[0].Days {
		menu.Days[weekday(d.Date)] = normalizeDay(d)
	}
	return menu, nil
}

func weekday(unix int64) string {
	return strings.ToLower(time.Unix(unix, 0).UTC().Weekday().String())
}

func normalizeDay(d RawDay) Day {
	if d.Closed || d.Reason != nil {
		reason := ""
		if d.Reason != nil {
			reason = *d.Reason
		}
		return Day{Date: d.Date, Open: false, Reason: &reason}
	}

	day := Day{Date: d.Date, Open: true, Meals: make([]Meal, 0, len(d.Meals))}
	for _, m := range d.Meals {
		meal := Meal{Value: m.Value}
		for _, id := range m.Attributes {
			meal.Attributes = append(meal.Attributes, Attribute{ID: id})
		}
		day.Meals = append(day.Meals, meal)
	}
	return day
}
