package reconcile

import (
	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/replication"
	"github.com/zeusync/entisync/pkg/vector"
)

// Positioned is implemented by components holding a 2D position.
type Positioned interface {
	ecs.Component
	Position() vector.Vec2
	SetPosition(vector.Vec2)
}

type InterpolationConfig struct {
	// Epsilon is the distance below which the component snaps to the target.
	Epsilon float64
	// Smoothing divides the per-tick step: step = dt * distance / Smoothing.
	Smoothing float64
	XPath     string
	YPath     string
}

func DefaultInterpolationConfig() InterpolationConfig {
	return InterpolationConfig{
		Epsilon:   2,
		Smoothing: 5,
		XPath:     "x",
		YPath:     "y",
	}
}

// Position moves a Positioned component toward the target point. Each tick
// it covers dt*distance/Smoothing along the direction of the target, never
// overshooting, and snaps once the remaining distance drops below Epsilon.
// A target lacking one coordinate keeps the current value for it.
//
// Movement goes through a MoveEvent on the entity so sibling components see
// it. Components that are not Movers themselves are moved directly first.
func Position[C Positioned](cfg InterpolationConfig) ecs.InterpolateFunc {
	if cfg.Smoothing <= 0 {
		cfg.Smoothing = DefaultInterpolationConfig().Smoothing
	}
	return ecs.Interpolator(func(c C, target replication.Patch, dt float64) bool {
		current := c.Position()
		tx, okX := target.Float(cfg.XPath)
		ty, okY := target.Float(cfg.YPath)
		if !okX && !okY {
			return true
		}
		if !okX {
			tx = current.X
		}
		if !okY {
			ty = current.Y
		}
		goal := vector.New(tx, ty)

		delta := goal.Sub(current)
		distance := delta.Length()
		if distance < cfg.Epsilon {
			c.SetPosition(goal)
			return true
		}

		step := dt * distance / cfg.Smoothing
		if step > distance {
			step = distance
		}
		move := delta.Div(distance).Scale(step)

		ev := ecs.MoveEvent{Delta: move}
		mover, isMover := any(c).(ecs.Mover)
		if !isMover {
			c.SetPosition(current.Add(move))
		}
		switch e := c.Entity(); {
		case e != nil:
			_ = e.Fire(ev)
		case isMover:
			mover.OnMove(ev)
		}
		return false
	})
}
