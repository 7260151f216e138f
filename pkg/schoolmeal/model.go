package schoolmeal

import "encoding/json"

// Menu is the normalized menu of one school for one ISO week.
type Menu struct {
	Year         int            `json:"year"`
	Week         int            `json:"week"`
	School       School         `json:"school"`
	Days         map[string]Day `json:"days"`
	Bulletins    []Bulletin     `json:"bulletins,omitempty"`
	LastModified int64          `json:"lastModified"`
}

type School struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	URLName  string `json:"URLName"`
	ImageURL string `json:"imageURL"`
}

// Day is keyed by its lowercase weekday name. A closed day carries Reason and
// never Meals; an open day carries Meals and never Reason.
type Day struct {
	Date   int64   `json:"date"`
	Open   bool    `json:"open"`
	Meals  []Meal  `json:"meals,omitempty"`
	Reason *string `json:"reason,omitempty"`
}

type plainDay Day

// MarshalJSON writes meals on every open day, as an empty list when there are
// none, and never on a closed one.
func (d Day) MarshalJSON() ([]byte, error) {
	if !d.Open {
		d.Meals = nil
		return json.Marshal(plainDay(d))
	}

	meals := d.Meals
	if meals == nil {
		meals = []Meal{}
	}
	d.Reason = nil
	return json.Marshal(struct {
		plainDay
		Meals []Meal `json:"meals"`
	}{plainDay: plainDay(d), Meals: meals})
}

type Meal struct {
	Value      string      `json:"value"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

type Attribute struct {
	ID int `json:"id"`
}
