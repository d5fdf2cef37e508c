package model

import "time"

const (
	PatternDaily             = "daily"
	PatternEveryOtherDayEven = "every_other_day_even"
	PatternEveryOtherDayOdd  = "every_other_day_odd"
)

type Customer struct {
	ID          int        `json:"ID"`
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	Calories    int        `json:"calories"`
	Pattern     string     `json:"pattern"`
	Monday      bool       `json:"monday"`
	Tuesday     bool       `json:"tuesday"`
	Wednesday   bool       `json:"wednesday"`
	Thursday    bool       `json:"thursday"`
	Friday      bool       `json:"friday"`
	Saturday    bool       `json:"saturday"`
	Sunday      bool       `json:"sunday"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastCheckAt *time.Time `json:"lastCheckAt"`
}

type CustomerInput struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Calories  int    `json:"calories"`
	Pattern   string `json:"pattern"`
	Monday    bool   `json:"monday"`
	Tuesday   bool   `json:"tuesday"`
	Wednesday bool   `json:"wednesday"`
	Thursday  bool   `json:"thursday"`
	Friday    bool   `json:"friday"`
	Saturday  bool   `json:"saturday"`
	Sunday    bool   `json:"sunday"`
}

// DeliveryDays resolves the weekly pattern to seven flags, Monday first.
// A named pattern wins over the explicit weekday columns; an empty pattern
// with no flags set means no delivery days at all.
func (c Customer) DeliveryDays() [7]bool {
	switch c.Pattern {
	case PatternDaily:
		return [7]bool{true, true, true, true, true, true, true}
	case PatternEveryOtherDayEven:
		return [7]bool{false, true, false, true, false, true, false}
	case PatternEveryOtherDayOdd:
		return [7]bool{true, false, true, false, true, false, true}
	}
	return [7]bool{c.Monday, c.Tuesday, c.Wednesday, c.Thursday, c.Friday, c.Saturday, c.Sunday}
}
