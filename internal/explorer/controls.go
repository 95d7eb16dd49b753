package explorer

import (
	"errors"
	"fmt"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/graph"
)

// ErrInvalidControl is returned for out-of-range control values.
var ErrInvalidControl = errors.New("invalid control value")

// Controls are the user inputs that shape a view.
type Controls struct {
	Token       string            `json:"token"`
	Limit       int               `json:"limit"`
	VolumeIndex int               `json:"volumeIndex"`
	Mode        domain.LinkMode   `json:"mode"`
	Window      domain.TimeWindow `json:"window"`
	Legend      domain.Direction  `json:"legend"`
}

// DefaultControls centres on token with the default limit and window.
func DefaultControls(token string) Controls {
	return Controls{
		Token:  token,
		Limit:  domain.DefaultLimit,
		Mode:   domain.LinkModeAll,
		Window: domain.DefaultWindow,
		Legend: domain.DirectionInflow,
	}
}

// Update is a partial change of Controls. Nil fields are left untouched.
// Token and Breadcrumb are mutually exclusive.
type Update struct {
	Token       *string            `json:"token,omitempty"`
	Breadcrumb  *string            `json:"breadcrumb,omitempty"`
	Limit       *int               `json:"limit,omitempty"`
	VolumeIndex *int               `json:"volumeIndex,omitempty"`
	Mode        *domain.LinkMode   `json:"mode,omitempty"`
	Window      *domain.TimeWindow `json:"window,omitempty"`
	Legend      *domain.Direction  `json:"legend,omitempty"`
}

// Validate checks every field that is set.
func (u Update) Validate() error {
	if u.Token != nil && u.Breadcrumb != nil {
		return fmt.Errorf("%w: token and breadcrumb both set", ErrInvalidControl)
	}
	if u.Limit != nil && !validLimit(*u.Limit) {
		return fmt.Errorf("%w: limit %d", ErrInvalidControl, *u.Limit)
	}
	if u.VolumeIndex != nil && (*u.VolumeIndex < 0 || *u.VolumeIndex >= len(graph.VolumeBuckets)) {
		return fmt.Errorf("%w: volume index %d", ErrInvalidControl, *u.VolumeIndex)
	}
	if u.Mode != nil && !u.Mode.IsValid() {
		return fmt.Errorf("%w: mode %q", ErrInvalidControl, *u.Mode)
	}
	if u.Window != nil && !u.Window.IsValid() {
		return fmt.Errorf("%w: window %d", ErrInvalidControl, int(*u.Window))
	}
	if u.Legend != nil && !u.Legend.IsValid() {
		return fmt.Errorf("%w: legend %q", ErrInvalidControl, *u.Legend)
	}
	return nil
}

// needsFetch reports whether the update changes the fetched data set.
func (u Update) needsFetch(c Controls) bool {
	return (u.Token != nil) || (u.Breadcrumb != nil) ||
		(u.Limit != nil && *u.Limit != c.Limit) ||
		(u.Window != nil && *u.Window != c.Window)
}

func validLimit(n int) bool {
	for _, l := range domain.Limits {
		if l == n {
			return true
		}
	}
	return false
}
