package messages

import (
	"fmt"
	"time"

	"admissionsbot/internal/models"
)

// Weekday names start on Sunday to index with time.Weekday.
var weekdayNames = map[string][7]string{
	models.LocaleRU: {"Воскресенье", "Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота"},
	models.LocaleUZ: {"Yakshanba", "Dushanba", "Seshanba", "Chorshanba", "Payshanba", "Juma", "Shanba"},
	models.LocaleEN: {"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	models.LocaleTR: {"Pazar", "Pazartesi", "Salı", "Çarşamba", "Perşembe", "Cuma", "Cumartesi"},
}

var weekdayShort = map[string][7]string{
	models.LocaleRU: {"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"},
	models.LocaleUZ: {"Yak", "Dush", "Sesh", "Chor", "Pay", "Jum", "Shan"},
	models.LocaleEN: {"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	models.LocaleTR: {"Paz", "Pzt", "Sal", "Çar", "Per", "Cum", "Cmt"},
}

var monthNames = map[string][12]string{
	models.LocaleRU: {"января", "февраля", "марта", "апреля", "мая", "июня", "июля", "августа", "сентября", "октября", "ноября", "декабря"},
	models.LocaleUZ: {"yanvar", "fevral", "mart", "aprel", "may", "iyun", "iyul", "avgust", "sentabr", "oktabr", "noyabr", "dekabr"},
	models.LocaleEN: {"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
	models.LocaleTR: {"Ocak", "Şubat", "Mart", "Nisan", "Mayıs", "Haziran", "Temmuz", "Ağustos", "Eylül", "Ekim", "Kasım", "Aralık"},
}

var monthShort = map[string][12]string{
	models.LocaleRU: {"янв", "фев", "мар", "апр", "май", "июн", "июл", "авг", "сен", "окт", "ноя", "дек"},
	models.LocaleUZ: {"yan", "fev", "mar", "apr", "may", "iyun", "iyul", "avg", "sen", "okt", "noy", "dek"},
	models.LocaleEN: {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	models.LocaleTR: {"Oca", "Şub", "Mar", "Nis", "May", "Haz", "Tem", "Ağu", "Eyl", "Eki", "Kas", "Ara"},
}

func localeOrDefault(locale string) string {
	if _, ok := weekdayNames[locale]; ok {
		return locale
	}
	return models.DefaultLocale
}

// LongDate renders "Monday, 19 October".
func LongDate(locale string, t time.Time) string {
	locale = localeOrDefault(locale)
	return fmt.Sprintf("%s, %d %s", weekdayNames[locale][t.Weekday()], t.Day(), monthNames[locale][t.Month()-1])
}

// DayMonth renders "19 October".
func DayMonth(locale string, t time.Time) string {
	locale = localeOrDefault(locale)
	return fmt.Sprintf("%d %s", t.Day(), monthNames[locale][t.Month()-1])
}

// ShortDate renders a date picker label such as "Mon, 19 Oct".
func ShortDate(locale string, t time.Time) string {
	locale = localeOrDefault(locale)
	return fmt.Sprintf("%s, %d %s", weekdayShort[locale][t.Weekday()], t.Day(), monthShort[locale][t.Month()-1])
}

// TourDates lists up to limit tour days starting the day after now (plus
// weekOffset weeks), looking two weeks ahead.
func TourDates(now time.Time, loc *time.Location, weekdays []time.Weekday, limit, weekOffset int) []time.Time {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1+7*weekOffset)

	allowed := make(map[time.Weekday]bool, len(weekdays))
	for _, d := range weekdays {
		allowed[d] = true
	}

	var dates []time.Time
	for i := 0; i < 14 && len(dates) < limit; i++ {
		d := start.AddDate(0, 0, i)
		if allowed[d.Weekday()] {
			dates = append(dates, d)
		}
	}
	return dates
}
