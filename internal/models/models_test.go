package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayload_Helpers(t *testing.T) {
	p := Payload{
		"name":   "  Ann  ",
		"float":  12.5,
		"int":    7,
		"int64":  int64(9),
		"bool":   true,
		"total":  "$24.99",
		"bad":    "abc",
		"nil":    nil,
		"nested": map[string]any{"x": 1},
	}

	t.Run("NilPayload", func(t *testing.T) {
		var nilPayload Payload
		assert.Equal(t, "", nilPayload.GetString("any"))
		assert.Equal(t, 0.0, nilPayload.GetFloat("any"))
		assert.Equal(t, "def", nilPayload.GetStringOr("any", "def"))
	})

	t.Run("GetString", func(t *testing.T) {
		assert.Equal(t, "Ann", p.GetString("name"))
		assert.Equal(t, "12.5", p.GetString("float"))
		assert.Equal(t, "7", p.GetString("int"))
		assert.Equal(t, "9", p.GetString("int64"))
		assert.Equal(t, "true", p.GetString("bool"))
		assert.Equal(t, "", p.GetString("nil"))
		assert.Equal(t, "", p.GetString("nested"))
		assert.Equal(t, "", p.GetString("missing"))
	})

	t.Run("GetStringOr", func(t *testing.T) {
		assert.Equal(t, "Ann", p.GetStringOr("name", "x"))
		assert.Equal(t, PriorityNormal, p.GetStringOr("priority", PriorityNormal))
	})

	t.Run("GetFloat", func(t *testing.T) {
		assert.Equal(t, 12.5, p.GetFloat("float"))
		assert.Equal(t, 7.0, p.GetFloat("int"))
		assert.Equal(t, 9.0, p.GetFloat("int64"))
		assert.InDelta(t, 24.99, p.GetFloat("total"), 0.0001)
		assert.Equal(t, 0.0, p.GetFloat("bad"))
		assert.Equal(t, 0.0, p.GetFloat("bool"))
	})
}

func TestBusinessProfile_Helpers(t *testing.T) {
	p := &BusinessProfile{
		EnabledFeatures: []string{" Appointments ", "faq"},
		Features: FeatureConfig{Appointments: AppointmentFeature{AppointmentTypes: []ServiceType{
			{Name: "Root Canal", Duration: 90},
			{Name: "Consult", Duration: 0},
		}}},
	}

	assert.Equal(t, "us", p.DisplayName())
	p.BusinessName = "Bright Smiles"
	assert.Equal(t, "Bright Smiles", p.DisplayName())

	assert.Equal(t, 90, p.ServiceDuration("root canal"))
	assert.Equal(t, DefaultServiceDuration, p.ServiceDuration("Consult"))
	assert.Equal(t, DefaultServiceDuration, p.ServiceDuration("Whitening"))
}

func TestPublicIDs(t *testing.T) {
	assert.Equal(t, "apt_42", (&Appointment{ID: 42}).PublicID())
	assert.Equal(t, "order_7", (&Order{ID: 7}).PublicID())
	assert.Equal(t, Result{Success: false, Message: "nope"}, Failure("nope"))
}
