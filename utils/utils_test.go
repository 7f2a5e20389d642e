package utils

import (
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	SetRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	code := m.Run()
	mr.Close()
	os.Exit(code)
}
