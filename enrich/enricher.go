package enrich

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/message"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/metric"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/pkg/timestamp"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/platform"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/sensorcontext"
)

const component = "enrich"

// ContextGetter is the slice of the context store the enricher needs.
type ContextGetter interface {
	GetAt(ctx context.Context, sensorID string, t int64) (*sensorcontext.Context, error)
}

// PlatformGetter resolves platform ids to rows for location lookups.
type PlatformGetter interface {
	Get(ctx context.Context, id string) (*platform.Platform, error)
}

// Enricher attaches context to raw observations. An observation is
// enriched with whatever context was valid at its own result time, not
// the context valid now, so out-of-order arrivals get the right
// answer.
type Enricher struct {
	contexts  ContextGetter
	platforms PlatformGetter
	unknown   *UnknownStore
	metrics   *metric.Metrics
	logger    *slog.Logger

	// Throttles the unknown-sensor warn log; a misconfigured feed can
	// produce thousands of these a minute.
	unknownWarn *rate.Limiter
}

// NewEnricher wires an observation enricher.
func NewEnricher(contexts ContextGetter, platforms PlatformGetter, unknown *UnknownStore, metrics *metric.Metrics, logger *slog.Logger) *Enricher {
	return &Enricher{
		contexts:    contexts,
		platforms:   platforms,
		unknown:     unknown,
		metrics:     metrics,
		logger:      logger.With("component", component),
		unknownWarn: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// AddContext returns the observation with the context valid at its
// result time merged in. An observation from a sensor with no context
// at that instant is returned unchanged after being recorded in the
// unknown-sensor sink; that path is not an error.
func (e *Enricher) AddContext(ctx context.Context, obs message.Observation) (message.Observation, error) {
	const op = "AddContext"

	if obs.MadeBySensor == "" {
		return obs, errors.Validationf(component, op, "observation has no madeBySensor")
	}
	resultTime := timestamp.Parse(obs.ResultTime)
	if resultTime == 0 {
		return obs, errors.Validationf(component, op, "unparseable resultTime %q", obs.ResultTime)
	}

	c, err := e.contexts.GetAt(ctx, obs.MadeBySensor, resultTime)
	if err != nil {
		if errors.IsNotFound(err) {
			e.recordUnknown(ctx, obs)
			return obs, nil
		}
		return obs, err
	}

	merged := sensorcontext.Merge(obs, c.ToAdd)
	e.metrics.RecordEnriched()

	if merged.Location == nil && len(merged.HostedByPath) > 0 {
		merged.Location = e.locationFromPath(ctx, merged.HostedByPath)
	}
	return merged, nil
}

// locationFromPath walks the hosting path from the most specific
// platform outwards and adopts the first location found. A platform
// that has since been deleted is skipped, not an error.
func (e *Enricher) locationFromPath(ctx context.Context, hostedByPath []string) *message.Location {
	for i := len(hostedByPath) - 1; i >= 0; i-- {
		p, err := e.platforms.Get(ctx, hostedByPath[i])
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			e.logger.Error("platform lookup during location resolution failed",
				"platform", hostedByPath[i], "error", err)
			return nil
		}
		if p.Location != nil {
			loc := *p.Location
			return &loc
		}
	}
	return nil
}

func (e *Enricher) recordUnknown(ctx context.Context, obs message.Observation) {
	e.metrics.RecordUnknownSensor()
	if err := e.unknown.Upsert(ctx, obs.MadeBySensor, obs); err != nil {
		e.logger.Error("unknown-sensor record failed", "sensor", obs.MadeBySensor, "error", err)
	}
	if e.unknownWarn.Allow() {
		e.logger.Warn("observation from sensor with no context", "sensor", obs.MadeBySensor)
	}
}
