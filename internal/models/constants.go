package models

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
	StatusNew       = "new"
)

// Features as listed in a profile's enabled_features.
const (
	FeatureAppointments  = "appointments"
	FeatureReservations  = "reservations"
	FeatureOrders        = "orders"
	FeatureFAQ           = "faq"
	FeatureMessages      = "messages"
	FeatureCancellations = "cancellations"
)

const (
	CancellationModeDelete = "delete"
	CancellationModeAudit  = "audit"

	CancellationScopeGlobal   = "global"
	CancellationScopeBusiness = "business"
)

const (
	ActionSuggestAlternatives = "suggest_alternatives"

	PriorityNormal = "normal"
)

const (
	// DefaultServiceDuration длительность услуги в минутах, если она не указана в каталоге
	DefaultServiceDuration = 30

	// SlotStepMinutes шаг перебора альтернативных слотов
	SlotStepMinutes = 30

	// AlternativeSearchDays сколько дней просматривается при поиске альтернатив
	AlternativeSearchDays = 7

	// MaxAlternatives сколько альтернатив собирается максимум
	MaxAlternatives = 5

	// AlternativesInMessage сколько альтернатив озвучивается клиенту
	AlternativesInMessage = 3

	// DefaultListLimit размер выборки для административных списков
	DefaultListLimit = 50
)
