package models

// Booking statuses.
const (
	BookingBooked      = "booked"
	BookingReminded    = "reminded"
	BookingConfirmed   = "confirmed"
	BookingRescheduled = "rescheduled"
	BookingCancelled   = "cancelled"
	BookingAttended    = "attended"
	BookingNoShow      = "no_show"
)

// Scheduled event kinds.
const (
	KindReminder        = "reminder"
	KindFollowup        = "followup"
	KindAttendanceCheck = "attendance_check"
)

// Supported locales.
const (
	LocaleRU = "ru"
	LocaleUZ = "uz"
	LocaleEN = "en"
	LocaleTR = "tr"

	DefaultLocale = LocaleRU
)

var Locales = []string{LocaleRU, LocaleUZ, LocaleEN, LocaleTR}

// Qualification answers.
var (
	ChildrenCountOptions = []string{"1", "2", "3", "4+"}
	AgeGroups            = []string{"3-6", "7-10", "11-14", "15-18"}
	Programs             = []string{"kindergarten", "russian", "ib", "consultation"}
)

const (
	// UpdateDedupTTL сколько помним обработанные update_id
	UpdateDedupTTL = 10 * 60 // 10 минут в секундах

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// MaxParentNameLength ограничение на длину имени родителя
	MaxParentNameLength = 100

	// CRMTaskDeadline срок задачи менеджеру "позвонить в течение часа"
	CRMTaskDeadline = 60 * 60 // 1 час в секундах
)
