package bootstrap

import (
	"context"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_ReleaseModeBeforeRouter(t *testing.T) {
	prev := gin.Mode()
	t.Cleanup(func() { gin.SetMode(prev) })

	cases := map[string]string{
		"false": gin.ReleaseMode,
		"true":  gin.DebugMode,
	}
	for runLocal, want := range cases {
		gin.SetMode(gin.DebugMode)
		t.Setenv("RUN_LOCAL", runLocal)
		t.Setenv("AWS_REGION", "us-east-1")

		env, err := Init(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, gin.Mode(), "RUN_LOCAL=%s", runLocal)
		assert.Equal(t, runLocal == "true", env.Config.RunLocal)
	}
}
