package history

import (
	"fmt"
	"time"
)

// wib is Western Indonesia Time, UTC+7.
var wib = time.FixedZone("WIB", 7*60*60)

var months = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatLocal renders t as "02 Januari 2006, 15:04 WIB".
func FormatLocal(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	l := t.In(wib)
	return fmt.Sprintf("%02d %s %d, %02d:%02d WIB", l.Day(), months[l.Month()-1], l.Year(), l.Hour(), l.Minute())
}
