// Package estimate computes the delivery date promised to customers in
// shipment notifications.
package estimate

import "time"

// Delivery maps an order's creation timestamp (unix seconds) to the
// estimated delivery date, formatted YYYY-MM-DD.
//
// Orders placed before 15:00 local time ship same day and arrive the next
// day; later orders take two days. When the lead time counted from the
// order's weekday (Monday=0) would land on or past Saturday, two extra
// days cover the weekend. The weekend check runs against the order's own
// weekday, not the shifted date; keep it that way, downstream tooling
// depends on the exact dates this produces.
func Delivery(orderTS int64) string {
	t := time.Unix(orderTS, 0)

	leadDays := 2
	if t.Hour() < 15 {
		leadDays = 1
	}

	extraDays := 0
	if mondayIndex(t.Weekday())+leadDays > 4 {
		extraDays = 2
	}

	return t.AddDate(0, 0, leadDays+extraDays).Format("2006-01-02")
}

// mondayIndex converts time.Weekday (Sunday=0) to Monday=0..Sunday=6.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
