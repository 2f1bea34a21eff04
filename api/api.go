package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"sort"
	"time"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/deployment"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/enrich"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/message"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/metric"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/natsclient"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/platform"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/registration"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/schema"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/sensor"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/sensorcontext"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/vocabulary"
)

const component = "api"

// DefaultPrefix is the leading subject token for every operation when
// the caller supplies none.
const DefaultPrefix = "sdm"

// handlerFunc is one operation's dispatch: decode the already-validated
// payload, run the domain call, return the reply body.
type handlerFunc func(ctx context.Context, payload []byte) (any, error)

// Deps collects everything the api dispatches to.
type Deps struct {
	Validator   *schema.Validator
	Sensors     *sensor.Controller
	SensorStore *sensor.Store
	Hierarchy   *platform.Hierarchy
	Platforms   *platform.Store
	Deployments *deployment.Store
	Contexts    *sensorcontext.Store
	Workflow    *registration.Workflow
	Hosts       *registration.HostStore
	Vocabulary  *vocabulary.Store
	Enricher    *enrich.Enricher
	Metrics     *metric.Metrics
	Logger      *slog.Logger
}

// API routes validated operation payloads to the domain components.
type API struct {
	validator   *schema.Validator
	sensors     *sensor.Controller
	sensorStore *sensor.Store
	hierarchy   *platform.Hierarchy
	platforms   *platform.Store
	deployments *deployment.Store
	contexts    *sensorcontext.Store
	workflow    *registration.Workflow
	hosts       *registration.HostStore
	vocab       *vocabulary.Store
	enricher    *enrich.Enricher
	metrics     *metric.Metrics
	logger      *slog.Logger

	handlers map[string]handlerFunc
}

// New wires the api over its dependencies.
func New(d Deps) *API {
	a := &API{
		validator:   d.Validator,
		sensors:     d.Sensors,
		sensorStore: d.SensorStore,
		hierarchy:   d.Hierarchy,
		platforms:   d.Platforms,
		deployments: d.Deployments,
		contexts:    d.Contexts,
		workflow:    d.Workflow,
		hosts:       d.Hosts,
		vocab:       d.Vocabulary,
		enricher:    d.Enricher,
		metrics:     d.Metrics,
		logger:      d.Logger.With("component", component),
	}
	a.handlers = map[string]handlerFunc{
		"sensor.create":           a.sensorCreate,
		"sensor.update":           a.sensorUpdate,
		"sensor.get":              a.sensorGet,
		"sensor.delete":           a.sensorDelete,
		"platform.create":         a.platformCreate,
		"platform.rehost":         a.platformRehost,
		"platform.unhost":         a.platformUnhost,
		"platform.get":            a.platformGet,
		"platform.delete":         a.platformDelete,
		"deployment.create":       a.deploymentCreate,
		"deployment.update":       a.deploymentUpdate,
		"deployment.get":          a.deploymentGet,
		"deployment.delete":       a.deploymentDelete,
		"permanenthost.create":    a.permanentHostCreate,
		"permanenthost.register":  a.permanentHostRegister,
		"context.get-live":        a.contextGetLive,
		"context.get-at":          a.contextGetAt,
		"observation.add-context": a.observationAddContext,
		"vocabulary.create":       a.vocabularyCreate,
		"vocabulary.delete":       a.vocabularyDelete,
	}
	return a
}

// Operations lists the operations the api answers, sorted.
func (a *API) Operations() []string {
	ops := make([]string, 0, len(a.handlers))
	for op := range a.handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Handle runs one operation end to end and returns the reply envelope.
func (a *API) Handle(ctx context.Context, operation string, payload []byte) message.Envelope {
	a.metrics.RecordRequest(operation)
	start := time.Now()

	env := a.dispatch(ctx, operation, payload)

	outcome := "ok"
	if !env.OK {
		outcome = env.Error.Kind
	}
	a.metrics.RecordHandled(operation, outcome, time.Since(start))
	return env
}

func (a *API) dispatch(ctx context.Context, operation string, payload []byte) message.Envelope {
	handler, ok := a.handlers[operation]
	if !ok {
		return message.ErrorEnvelope(errors.Validationf(component, "dispatch", "unknown operation %s", operation))
	}
	if err := a.validator.Validate(operation, payload); err != nil {
		return message.ErrorEnvelope(err)
	}
	data, err := handler(ctx, payload)
	if err != nil {
		a.observeFailure(operation, err)
		return message.ErrorEnvelope(err)
	}
	return message.OKEnvelope(data)
}

// observeFailure logs and counts store failures. Expected outcomes are
// part of normal operation and travel back in the envelope alone.
func (a *API) observeFailure(operation string, err error) {
	if errors.KindOf(err) != errors.KindStore {
		return
	}
	comp := component
	var c *errors.Classified
	if stderrors.As(err, &c) && c.Component != "" {
		comp = c.Component
	}
	a.metrics.RecordStoreFailure(comp)
	a.logger.Error("request failed", "operation", operation, "error", err)
}

// Subscribe registers a request/reply handler per operation under
// prefix, e.g. "sdm.sensor.create".
func (a *API) Subscribe(client *natsclient.Client, prefix string) error {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	for op := range a.handlers {
		operation := op
		subject := prefix + "." + operation
		_, err := client.Respond(subject, func(ctx context.Context, data []byte) []byte {
			return encodeEnvelope(a.Handle(ctx, operation, data))
		})
		if err != nil {
			return errors.WrapStore(err, component, "Subscribe", "subscribe "+subject)
		}
	}
	a.logger.Info("request handlers registered", "prefix", prefix, "operations", len(a.handlers))
	return nil
}

func encodeEnvelope(env message.Envelope) []byte {
	raw, err := json.Marshal(env)
	if err != nil {
		return []byte(`{"ok":false,"error":{"kind":"store","message":"reply encoding failed"}}`)
	}
	return raw
}

// decode unmarshals a schema-validated payload. A failure here means
// the schema and the request struct disagree on a field's type.
func decode(operation string, payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Validationf(component, operation, "malformed payload: %v", err)
	}
	return nil
}
