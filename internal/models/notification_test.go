package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatPlaceholders(t *testing.T) {
	data := map[string]any{"orderNumber": "A-1", "count": 3}

	require.Equal(t, "Order A-1 has 3 items", FormatPlaceholders("Order {{orderNumber}} has {{count}} items", data))
	require.Equal(t, "A-1 / A-1", FormatPlaceholders("{{orderNumber}} / {{orderNumber}}", data))
	require.Equal(t, "Hi {{name}}, order A-1", FormatPlaceholders("Hi {{name}}, order {{orderNumber}}", data))
	require.Equal(t, "no tokens", FormatPlaceholders("no tokens", data))
	require.Equal(t, "{{x}}", FormatPlaceholders("{{x}}", nil))
	require.Equal(t, "unclosed {{orderNumber", FormatPlaceholders("unclosed {{orderNumber", data))
}

func TestFormatPlaceholders_ValuesAreNotRescanned(t *testing.T) {
	data := map[string]any{
		"description": "held at {{location}}",
		"location":    "Depot 4",
	}
	for i := 0; i < 20; i++ {
		require.Equal(t, "held at {{location}} / Depot 4",
			FormatPlaceholders("{{description}} / {{location}}", data))
	}
}

func TestNotification_FormattedAccessorsDoNotMutate(t *testing.T) {
	n := &Notification{
		Title:   "Delivered: {{orderNumber}}",
		Message: "Your package {{trackingNumber}} was delivered",
		Data:    map[string]any{"orderNumber": "A-7", "trackingNumber": "1Z99"},
	}
	require.Equal(t, "Delivered: A-7", n.FormattedTitle())
	require.Equal(t, "Your package 1Z99 was delivered", n.FormattedMessage())
	require.Equal(t, "Your package {{trackingNumber}} was delivered", n.Message)
}

func TestChannels_AllEnabledDelivered(t *testing.T) {
	var c Channels
	require.True(t, c.AllEnabledDelivered(), "no enabled channel is trivially delivered")

	c.InApp.Enabled = true
	c.Email.Enabled = true
	c.InApp.Delivered = true
	require.False(t, c.AllEnabledDelivered())

	c.Email.Delivered = true
	require.True(t, c.AllEnabledDelivered())

	c.SMS.Delivered = false
	require.True(t, c.AllEnabledDelivered(), "disabled sms does not count")
}

func TestChannels_Get(t *testing.T) {
	var c Channels
	c.Get(ChannelPush).Enabled = true
	require.True(t, c.Push.Enabled)
	require.Nil(t, c.Get(Channel("fax")))
}
