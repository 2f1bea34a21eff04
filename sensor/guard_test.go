package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
)

func sp(s string) *string { return &s }

func TestCheckNew(t *testing.T) {
	tests := []struct {
		name   string
		sensor Sensor
		ok     bool
	}{
		{"bare", Sensor{ID: "s1"}, true},
		{"deployment only", Sensor{ID: "s1", HasDeployment: "dep-1"}, true},
		{"deployed and hosted", Sensor{ID: "s1", HasDeployment: "dep-1", IsHostedBy: "p1"}, true},
		{"permanent host only", Sensor{ID: "s1", PermanentHost: "ph-1"}, true},
		{"permanent host with deployment", Sensor{ID: "s1", PermanentHost: "ph-1", HasDeployment: "dep-1"}, false},
		{"permanent host with platform", Sensor{ID: "s1", PermanentHost: "ph-1", IsHostedBy: "p1"}, false},
		{"hosted without deployment", Sensor{ID: "s1", IsHostedBy: "p1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckNew(tt.sensor)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.IsForbidden(err))
			}
		})
	}
}

func TestCheckUpdate(t *testing.T) {
	tests := []struct {
		name    string
		current Sensor
		update  Updates
		ok      bool
	}{
		{
			"label edit always legal",
			Sensor{ID: "s1", PermanentHost: "ph-1"},
			Updates{Label: sp("new label")},
			true,
		},
		{
			"permanent host sensor cannot gain deployment directly",
			Sensor{ID: "s1", PermanentHost: "ph-1"},
			Updates{HasDeployment: sp("dep-1")},
			false,
		},
		{
			"permanent host cannot change while hosted",
			Sensor{ID: "s1", HasDeployment: "dep-1", IsHostedBy: "p1"},
			Updates{PermanentHost: sp("ph-2")},
			false,
		},
		{
			"permanent host and deployment cannot change together",
			Sensor{ID: "s1"},
			Updates{PermanentHost: sp("ph-1"), HasDeployment: sp("dep-1")},
			false,
		},
		{
			"hosting requires deployment",
			Sensor{ID: "s1"},
			Updates{IsHostedBy: sp("p1")},
			false,
		},
		{
			"hosting with simultaneous deployment is legal",
			Sensor{ID: "s1"},
			Updates{HasDeployment: sp("dep-1"), IsHostedBy: sp("p1")},
			true,
		},
		{
			"hosting forbidden while permanent host set",
			Sensor{ID: "s1", PermanentHost: "ph-1"},
			Updates{IsHostedBy: sp("p1")},
			false,
		},
		{
			"bare unhost is forbidden",
			Sensor{ID: "s1", HasDeployment: "dep-1", IsHostedBy: "p1"},
			Updates{IsHostedBy: sp("")},
			false,
		},
		{
			"deployment jump while on old platform is forbidden",
			Sensor{ID: "s1", HasDeployment: "dep-1", IsHostedBy: "p1"},
			Updates{HasDeployment: sp("dep-2")},
			false,
		},
		{
			"deployment jump with platform move is legal",
			Sensor{ID: "s1", HasDeployment: "dep-1", IsHostedBy: "p1"},
			Updates{HasDeployment: sp("dep-2"), IsHostedBy: sp("p2")},
			true,
		},
		{
			"leaving deployment must not stay hosted",
			Sensor{ID: "s1", HasDeployment: "dep-1", IsHostedBy: "p1"},
			Updates{HasDeployment: sp("")},
			false,
		},
		{
			"leaving deployment with host cleared is legal",
			Sensor{ID: "s1", HasDeployment: "dep-1", IsHostedBy: "p1"},
			Updates{HasDeployment: sp(""), IsHostedBy: sp("")},
			true,
		},
		{
			"leaving deployment when never hosted is legal",
			Sensor{ID: "s1", HasDeployment: "dep-1"},
			Updates{HasDeployment: sp("")},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckUpdate(tt.current, tt.update)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.IsForbidden(err), "got %v", err)
			}
		})
	}
}
