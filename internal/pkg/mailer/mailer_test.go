package mailer

import (
	"bytes"
	"testing"

	"phonehub/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledWithoutHost(t *testing.T) {
	assert.Nil(t, New(config.SMTPConfig{}))
}

func TestBuild(t *testing.T) {
	m := New(config.SMTPConfig{Host: "smtp.example.com", Port: 465, User: "shop@example.com", SSL: true})
	require.NotNil(t, m)

	t.Run("Text and HTML", func(t *testing.T) {
		msg, err := m.build("buyer@example.com", "Order Confirmation", "thanks", "<p>thanks</p>")
		require.NoError(t, err)

		var buf bytes.Buffer
		_, err = msg.WriteTo(&buf)
		require.NoError(t, err)
		raw := buf.String()
		assert.Contains(t, raw, "From: shop@example.com")
		assert.Contains(t, raw, "To: buyer@example.com")
		assert.Contains(t, raw, "Subject: Order Confirmation")
		assert.Contains(t, raw, "text/html")
	})

	t.Run("Empty recipient", func(t *testing.T) {
		_, err := m.build("", "x", "y", "")
		assert.Error(t, err)
	})
}
