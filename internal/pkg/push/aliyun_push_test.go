package push

import (
	"testing"

	"phonehub/internal/pkg/config"

	"github.com/stretchr/testify/assert"
)

func TestBuildRequest(t *testing.T) {
	req := buildRequest(12345, "user-1", "Order paid", "ORD-1 is now processing", map[string]string{"orderId": "o-1"})

	assert.Equal(t, "ACCOUNT", req.Target)
	assert.Equal(t, "user-1", req.TargetValue)
	assert.Equal(t, "Order paid", req.Title)
	assert.JSONEq(t, `{"orderId":"o-1"}`, req.AndroidExtParameters)
	assert.Equal(t, req.AndroidExtParameters, req.IOSExtParameters)
}

func TestNewAliyunPushService_Disabled(t *testing.T) {
	svc, err := NewAliyunPushService(config.PushConfig{})
	assert.NoError(t, err)
	assert.Nil(t, svc)
}
