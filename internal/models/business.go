package models

import "strings"

// BusinessProfile is the per-business configuration loaded for a single request.
type BusinessProfile struct {
	ID              string             `yaml:"id" json:"id"`
	BusinessName    string             `yaml:"business_name" json:"business_name"`
	BusinessHours   map[string]string  `yaml:"business_hours" json:"business_hours"`
	EnabledFeatures []string           `yaml:"enabled_features" json:"enabled_features"`
	Features        FeatureConfig      `yaml:"features" json:"features"`
	Notifications   NotificationTarget `yaml:"notifications" json:"notifications"`
}

type FeatureConfig struct {
	Appointments  AppointmentFeature  `yaml:"appointments" json:"appointments"`
	FAQ           FAQFeature          `yaml:"faq" json:"faq"`
	Cancellations CancellationFeature `yaml:"cancellations" json:"cancellations"`
}

type AppointmentFeature struct {
	AppointmentTypes []ServiceType `yaml:"appointment_types" json:"appointment_types"`
}

type ServiceType struct {
	Name     string `yaml:"name" json:"name"`
	Duration int    `yaml:"duration" json:"duration"` // minutes
}

type FAQFeature struct {
	Questions []FAQEntry `yaml:"questions" json:"questions"`
}

// FAQEntry matches when any of the "|"-separated keywords occurs in the question.
type FAQEntry struct {
	Keywords string `yaml:"keywords" json:"keywords"`
	Answer   string `yaml:"answer" json:"answer"`
}

type CancellationFeature struct {
	Mode  string `yaml:"mode" json:"mode"`   // delete, audit
	Scope string `yaml:"scope" json:"scope"` // global, business
}

type NotificationTarget struct {
	SMSTo          string `yaml:"sms_to" json:"sms_to,omitempty"`
	TelegramChatID int64  `yaml:"telegram_chat_id" json:"telegram_chat_id,omitempty"`
}

// DisplayName falls back to "us" so greetings read naturally.
func (p *BusinessProfile) DisplayName() string {
	if strings.TrimSpace(p.BusinessName) == "" {
		return "us"
	}
	return p.BusinessName
}

// ServiceDuration returns the catalog duration in minutes for a service name,
// matched case-insensitively, or DefaultServiceDuration when it is not listed.
func (p *BusinessProfile) ServiceDuration(service string) int {
	for _, st := range p.Features.Appointments.AppointmentTypes {
		if strings.EqualFold(strings.TrimSpace(st.Name), strings.TrimSpace(service)) {
			if st.Duration > 0 {
				return st.Duration
			}
			return DefaultServiceDuration
		}
	}
	return DefaultServiceDuration
}
