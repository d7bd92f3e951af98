package actor

import (
	"testing"
	"time"

	adactor "github.com/berfenger/ucan2mqtt/internal/adapter/actor"
	"github.com/berfenger/ucan2mqtt/internal/config"
	"github.com/berfenger/ucan2mqtt/internal/core/state"
	"github.com/berfenger/ucan2mqtt/internal/util"
	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnMaster(t *testing.T, client *ucancloud.TestClient, store *state.Store, tokens *config.MemoryTokenStore) (*actor.ActorSystem, *actor.PID) {
	as := actor.NewActorSystem()

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, client, store, tokens, nil, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, logger)
	})
	pid, err := as.Root.SpawnNamed(props, "master")
	require.NoError(t, err)
	return as, pid
}

func TestMasterActor(t *testing.T) {
	client := ucancloud.NewTestClient()
	client.SetToken("tok")
	store := state.NewStore()

	as, pid := spawnMaster(t, client, store, &config.MemoryTokenStore{})
	defer as.Shutdown()

	time.Sleep(500 * time.Millisecond)

	healthResp := health(t, as, pid)
	assert.Equal(t, "master", healthResp.Id)
	assert.True(t, healthResp.Healthy, "healthy is true")
	assert.Equal(t, 0, client.SignInCount(), "token already present")

	as.Root.Stop(pid)
}

func TestMasterActorSignsInAtStartup(t *testing.T) {
	client := ucancloud.NewTestClient()
	store := state.NewStore()
	tokens := &config.MemoryTokenStore{}

	as, pid := spawnMaster(t, client, store, tokens)
	defer as.Shutdown()

	// the sensor actor fetches the list as soon as the session exists
	assert.Eventually(t, func() bool { return len(store.DeviceList()) == 2 }, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, "test-token", client.Token())
	token, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, "test-token", token)

	assert.True(t, health(t, as, pid).Healthy)

	as.Root.Stop(pid)
}

func TestMasterActorInvalidCredentials(t *testing.T) {
	client := ucancloud.NewTestClient()
	client.SetSignInErr(&ucancloud.AuthError{Kind: ucancloud.AuthInvalidCredentials, Op: "signin"})

	as, pid := spawnMaster(t, client, state.NewStore(), &config.MemoryTokenStore{})
	defer as.Shutdown()

	time.Sleep(300 * time.Millisecond)

	assert.False(t, health(t, as, pid).Healthy)
	assert.Equal(t, 1, client.SignInCount())
	assert.Empty(t, client.CallsSnapshot(), "nothing polled without a session")

	as.Root.Stop(pid)
}

func TestMasterActorReauthenticates(t *testing.T) {
	client := ucancloud.NewTestClient()
	client.SetToken("expired")
	client.SetErr(&ucancloud.AuthError{Kind: ucancloud.AuthRejected, Op: "device_list"})
	store := state.NewStore()

	as, pid := spawnMaster(t, client, store, &config.MemoryTokenStore{})
	defer as.Shutdown()

	assert.Eventually(t, func() bool { return client.SignInCount() >= 1 }, 3*time.Second, 50*time.Millisecond)
	client.SetErr(nil)

	// a successful sign-in resumes the producers
	assert.Eventually(t, func() bool { return len(store.DeviceList()) == 2 }, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, "test-token", client.Token())

	as.Root.Stop(pid)
}
