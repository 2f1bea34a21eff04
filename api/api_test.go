package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/deployment"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/enrich"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/message"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/metric"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/platform"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/registration"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/schema"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/sensor"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/sensorcontext"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/testutil"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/vocabulary"
)

type fixture struct {
	api              *API
	deploymentBucket *testutil.MemoryBucket
}

// newFixture wires the full stack over in-memory buckets.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.Default()
	metrics := metric.NewMetrics()

	deploymentBucket := testutil.NewMemoryBucket()
	deployments := deployment.NewStore(deploymentBucket, logger)
	platforms := platform.NewStore(testutil.NewMemoryBucket(), logger)
	hierarchy := platform.NewHierarchy(platforms, deployments, logger)
	sensors := sensor.NewStore(testutil.NewMemoryBucket(), logger)
	contexts := sensorcontext.NewStore(testutil.NewMemoryBucket(), logger)
	hosts := registration.NewHostStore(testutil.NewMemoryBucket(), logger)
	controller := sensor.NewController(sensors, contexts, platforms, deployments, hosts, logger)
	workflow := registration.NewWorkflow(hosts, sensors, controller, hierarchy, logger)
	vocab := vocabulary.NewStore(testutil.NewMemoryBucket(), logger)
	unknown := enrich.NewUnknownStore(testutil.NewMemoryBucket(), logger)
	enricher := enrich.NewEnricher(contexts, platforms, unknown, metrics, logger)

	validator, err := schema.NewValidator()
	require.NoError(t, err)

	return &fixture{
		api: New(Deps{
			Validator:   validator,
			Sensors:     controller,
			SensorStore: sensors,
			Hierarchy:   hierarchy,
			Platforms:   platforms,
			Deployments: deployments,
			Contexts:    contexts,
			Workflow:    workflow,
			Hosts:       hosts,
			Vocabulary:  vocab,
			Enricher:    enricher,
			Metrics:     metrics,
			Logger:      logger,
		}),
		deploymentBucket: deploymentBucket,
	}
}

// call runs an operation and requires a successful envelope, decoding
// the reply into out when out is non-nil.
func (f *fixture) call(t *testing.T, operation, payload string, out any) {
	t.Helper()
	env := f.api.Handle(context.Background(), operation, []byte(payload))
	require.True(t, env.OK, "operation %s failed: %+v", operation, env.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
}

// fail runs an operation and requires a failed envelope of the given
// kind.
func (f *fixture) fail(t *testing.T, operation, payload, kind string) *message.ErrorBody {
	t.Helper()
	env := f.api.Handle(context.Background(), operation, []byte(payload))
	require.False(t, env.OK, "operation %s unexpectedly succeeded", operation)
	require.NotNil(t, env.Error)
	assert.Equal(t, kind, env.Error.Kind)
	return env.Error
}

func TestSensorLifecycleOverAPI(t *testing.T) {
	f := newFixture(t)

	f.call(t, "deployment.create", `{"id": "dep-1", "label": "City centre"}`, nil)

	var created sensor.Sensor
	f.call(t, "sensor.create", `{"id": "temp-1", "hasDeployment": "dep-1"}`, &created)
	assert.Equal(t, "dep-1", created.HasDeployment)

	var live sensorcontext.Context
	f.call(t, "context.get-live", `{"sensorId": "temp-1"}`, &live)
	assert.Equal(t, []string{"dep-1"}, live.ToAdd.InDeployments)
	assert.Empty(t, live.ToAdd.HostedByPath)

	f.call(t, "sensor.delete", `{"id": "temp-1"}`, nil)
	f.fail(t, "sensor.get", `{"id": "temp-1"}`, "not-found")
	f.fail(t, "context.get-live", `{"sensorId": "temp-1"}`, "not-found")
}

func TestValidationFailures(t *testing.T) {
	f := newFixture(t)

	// Uppercase ids never reach the domain code.
	f.fail(t, "sensor.create", `{"id": "Temp-1"}`, "validation")
	// Unknown fields are rejected at the schema.
	f.fail(t, "sensor.create", `{"id": "temp-1", "colour": "red"}`, "validation")
	// Unknown operations are a caller mistake, not a server fault.
	f.fail(t, "sensor.frobnicate", `{"id": "temp-1"}`, "validation")
	// Malformed JSON.
	f.fail(t, "sensor.create", `{"id": `, "validation")
}

func TestSensorConfigVocabularyRefs(t *testing.T) {
	f := newFixture(t)
	f.call(t, "deployment.create", `{"id": "dep-1"}`, nil)

	payload := `{
		"id": "temp-1",
		"hasDeployment": "dep-1",
		"initialConfig": [{"hasPriority": true, "observedProperty": "air-temperature", "unit": "degree-celsius"}]
	}`

	body := f.fail(t, "sensor.create", payload, "validation")
	assert.Contains(t, body.Message, "vocabulary")

	f.call(t, "vocabulary.create", `{"id": "air-temperature", "kind": "observableproperty"}`, nil)
	f.call(t, "vocabulary.create", `{"id": "degree-celsius", "kind": "unit"}`, nil)
	f.call(t, "sensor.create", payload, nil)

	var live sensorcontext.Context
	f.call(t, "context.get-live", `{"sensorId": "temp-1"}`, &live)
	assert.Equal(t, "air-temperature", live.ToAdd.ObservedProperty.Value)
}

func TestPlatformDeleteDetachesAndRecontextualizes(t *testing.T) {
	f := newFixture(t)
	f.call(t, "deployment.create", `{"id": "dep-1"}`, nil)
	f.call(t, "platform.create", `{"id": "tower", "ownerDeployment": "dep-1"}`, nil)
	f.call(t, "platform.create", `{"id": "mount", "ownerDeployment": "dep-1", "isHostedBy": "tower"}`, nil)
	f.call(t, "sensor.create", `{"id": "on-tower", "hasDeployment": "dep-1", "isHostedBy": "tower"}`, nil)
	f.call(t, "sensor.create", `{"id": "on-mount", "hasDeployment": "dep-1", "isHostedBy": "mount"}`, nil)

	f.call(t, "platform.delete", `{"id": "tower"}`, nil)

	f.fail(t, "platform.get", `{"id": "tower"}`, "not-found")

	// The directly-hosted sensor fell off; the deeper one kept its
	// platform with the deleted ancestor trimmed from its path.
	var onTower sensor.Sensor
	f.call(t, "sensor.get", `{"id": "on-tower"}`, &onTower)
	assert.Empty(t, onTower.IsHostedBy)

	var live sensorcontext.Context
	f.call(t, "context.get-live", `{"sensorId": "on-tower"}`, &live)
	assert.Empty(t, live.ToAdd.HostedByPath)

	f.call(t, "context.get-live", `{"sensorId": "on-mount"}`, &live)
	assert.Equal(t, []string{"mount"}, live.ToAdd.HostedByPath)
}

func TestPlatformRehostOverAPI(t *testing.T) {
	f := newFixture(t)
	f.call(t, "deployment.create", `{"id": "dep-1"}`, nil)
	f.call(t, "platform.create", `{"id": "site-a", "ownerDeployment": "dep-1"}`, nil)
	f.call(t, "platform.create", `{"id": "site-b", "ownerDeployment": "dep-1"}`, nil)
	f.call(t, "platform.create", `{"id": "pole", "ownerDeployment": "dep-1", "isHostedBy": "site-a"}`, nil)
	f.call(t, "sensor.create", `{"id": "temp-1", "hasDeployment": "dep-1", "isHostedBy": "pole"}`, nil)

	var moved platform.Platform
	f.call(t, "platform.rehost", `{"id": "pole", "hostId": "site-b"}`, &moved)
	assert.Equal(t, []string{"site-b"}, moved.HostedByPath)

	var live sensorcontext.Context
	f.call(t, "context.get-live", `{"sensorId": "temp-1"}`, &live)
	assert.Equal(t, []string{"site-b", "pole"}, live.ToAdd.HostedByPath)

	f.call(t, "platform.unhost", `{"id": "pole"}`, nil)
	f.call(t, "context.get-live", `{"sensorId": "temp-1"}`, &live)
	assert.Equal(t, []string{"pole"}, live.ToAdd.HostedByPath)
}

func TestRegistrationOverAPI(t *testing.T) {
	f := newFixture(t)
	f.call(t, "deployment.create", `{"id": "dep-1"}`, nil)

	var host registration.PermanentHost
	f.call(t, "permanenthost.create", `{"id": "unit-1", "static": false}`, &host)
	require.NotEmpty(t, host.RegistrationKey)

	f.call(t, "sensor.create", `{"id": "temp-1", "permanentHost": "unit-1"}`, nil)

	var result registration.Result
	payload := fmt.Sprintf(`{"registrationKey": %q, "deploymentId": "dep-1"}`, host.RegistrationKey)
	f.call(t, "permanenthost.register", payload, &result)
	assert.Equal(t, []string{"temp-1"}, result.Sensors)

	var live sensorcontext.Context
	f.call(t, "context.get-live", `{"sensorId": "temp-1"}`, &live)
	assert.Equal(t, []string{"dep-1"}, live.ToAdd.InDeployments)
	assert.Equal(t, []string{result.Platform}, live.ToAdd.HostedByPath)
}

func TestObservationAddContextOverAPI(t *testing.T) {
	f := newFixture(t)
	f.call(t, "deployment.create", `{"id": "dep-1"}`, nil)
	f.call(t, "sensor.create", `{"id": "temp-1", "hasDeployment": "dep-1"}`, nil)

	var obs message.Observation
	f.call(t, "observation.add-context",
		`{"madeBySensor": "temp-1", "resultTime": "2026-08-30T12:00:00Z"}`, &obs)
	assert.Equal(t, []string{"dep-1"}, obs.InDeployments)

	// Unknown sensors pass through unenriched rather than failing.
	var passthrough message.Observation
	f.call(t, "observation.add-context",
		`{"madeBySensor": "stranger", "resultTime": "2026-08-30T12:00:00Z"}`, &passthrough)
	assert.Empty(t, passthrough.InDeployments)
}

func TestStoreFailureEnvelopeHidesDetail(t *testing.T) {
	f := newFixture(t)
	f.call(t, "deployment.create", `{"id": "dep-1"}`, nil)

	f.deploymentBucket.FailNext = errors.New("nats: connection refused to 10.0.0.5")
	body := f.fail(t, "deployment.get", `{"id": "dep-1"}`, "store-failure")
	assert.NotContains(t, body.Message, "10.0.0.5")

	f.call(t, "deployment.get", `{"id": "dep-1"}`, nil)
}

func TestOperationsMatchSchemas(t *testing.T) {
	f := newFixture(t)
	validator, err := schema.NewValidator()
	require.NoError(t, err)
	assert.ElementsMatch(t, validator.Operations(), f.api.Operations())
}
