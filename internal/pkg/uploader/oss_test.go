package uploader

import (
	"strings"
	"testing"
	"time"

	"phonehub/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	t.Run("Image", func(t *testing.T) {
		key, ct, err := objectKey("/products/p1/", "Photo.PNG", now)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(key, "products/p1/20240309/"))
		assert.True(t, strings.HasSuffix(key, ".png"))
		assert.Equal(t, "image/png", ct)
	})

	t.Run("Rejects non image", func(t *testing.T) {
		_, _, err := objectKey("products", "evil.exe", now)
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})
}

func TestNewAliyunOSSUploader_Disabled(t *testing.T) {
	u, err := NewAliyunOSSUploader(configWithoutEndpoint())
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func configWithoutEndpoint() config.OSSConfig {
	return config.OSSConfig{BucketName: "phonehub"}
}
