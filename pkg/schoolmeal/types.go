package schoolmeal

import "encoding/json"

// RawMenu is the body of the menu endpoint.
type RawMenu struct {
	ID              int        `json:"id"`
	FeedbackAllowed bool       `json:"feedbackAllowed"`
	School          RawSchool  `json:"school"`
	Weeks           []RawWeek  `json:"weeks"`
	Bulletins       []Bulletin `json:"bulletins"`
}

type RawSchool struct {
	ID       int         `json:"id"`
	Name     string      `json:"name"`
	URLName  string      `json:"URLName"`
	ImageURL string      `json:"imageURL"`
	District RawDistrict `json:"district"`
}

type RawDistrict struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	URLName string `json:"URLName"`
}

type RawWeek struct {
	Number int      `json:"number"`
	Year   int      `json:"year"`
	Days   []RawDay `json:"days"`
}

// RawDay is one school day. Date is a unix timestamp in seconds. A reason key
// marks the day closed, even when its value is null.
type RawDay struct {
	Date   int64     `json:"date"`
	Reason *string   `json:"reason"`
	Meals  []RawMeal `json:"meals"`
	Closed bool      `json:"-"`
}

type rawDay RawDay

func (d *RawDay) UnmarshalJSON(b []byte) error {
	var v rawDay
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}
	_, v.Closed = keys["reason"]
	*d = RawDay(v)
	return nil
}

type RawMeal struct {
	Value      string `json:"value"`
	Attributes []int  `json:"attributes"`
}

type Bulletin struct {
	Text string `json:"text"`
}
