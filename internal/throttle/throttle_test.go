package throttle

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var redisAddr string

func mustStartRedisContainer() (func(context.Context) error, error) {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return container.Terminate, err
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		return container.Terminate, err
	}
	redisAddr = host + ":" + port.Port()
	return container.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := mustStartRedisContainer()
	if err != nil {
		log.Printf("skipping redis tests, could not start container: %v", err)
		if teardown != nil {
			_ = teardown(context.Background())
		}
		os.Exit(0)
	}

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Printf("could not teardown redis container: %v", err)
		}
	}
	os.Exit(code)
}

func TestHitBlocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	l, err := NewRedis(ctx, redisAddr, "", 0, 2, time.Minute)
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 2; i++ {
		ok, err := l.Hit(ctx, "login:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Hit(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Hit(ctx, "login:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok, "keys are counted separately")
}

func TestResetClearsAttempts(t *testing.T) {
	ctx := context.Background()
	l, err := NewRedis(ctx, redisAddr, "", 0, 1, time.Minute)
	require.NoError(t, err)
	defer l.Close()

	_, _ = l.Hit(ctx, "reset")
	ok, _ := l.Hit(ctx, "reset")
	require.False(t, ok)

	require.NoError(t, l.Reset(ctx, "reset"))
	ok, err = l.Hit(ctx, "reset")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWindowExpires(t *testing.T) {
	ctx := context.Background()
	l, err := NewRedis(ctx, redisAddr, "", 0, 1, time.Second)
	require.NoError(t, err)
	defer l.Close()

	_, _ = l.Hit(ctx, "expiring")
	ok, _ := l.Hit(ctx, "expiring")
	require.False(t, ok)

	assert.Eventually(t, func() bool {
		ok, err := l.Hit(ctx, "expiring")
		if err != nil || !ok {
			return false
		}
		return l.Reset(ctx, "expiring") == nil
	}, 5*time.Second, 200*time.Millisecond)
}

func TestNewRedisFailsWithoutServer(t *testing.T) {
	_, err := NewRedis(context.Background(), "127.0.0.1:1", "", 0, 1, time.Minute)
	assert.Error(t, err)
}
