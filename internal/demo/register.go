package demo

import (
	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/reconcile"
)

// Blueprint ids.
const (
	BlueprintPlayer = "Player"
	BlueprintSlime  = "Slime"
	BlueprintFren   = "Fren"
)

// Descriptors returns the demo kinds. Positions interpolate with cfg.
func Descriptors(cfg reconcile.InterpolationConfig) []ecs.Descriptor {
	return []ecs.Descriptor{
		ecs.Describe[*Position](KindPosition).
			WithCodec(ecs.Codec(positionCodec)).
			WithInterpolation(reconcile.Position[*Position](cfg)),
		ecs.Describe[*Name](KindName).WithCodec(ecs.Codec(nameCodec)),
		ecs.Describe[*Emote](KindEmote),
		ecs.Describe[*Wander](KindWander),
	}
}

// Register adds the demo kinds and blueprints.
func Register(registry *ecs.Registry, blueprints *ecs.Blueprints, cfg reconcile.InterpolationConfig) error {
	for _, d := range Descriptors(cfg) {
		if err := registry.Register(d); err != nil {
			return err
		}
	}

	bps := map[string]ecs.Blueprint{
		BlueprintPlayer: func() []ecs.Component {
			return []ecs.Component{&Position{}, &Name{}, &Emote{}}
		},
		BlueprintSlime: func() []ecs.Component {
			return []ecs.Component{&Position{}}
		},
		BlueprintFren: func() []ecs.Component {
			return []ecs.Component{&Position{}, &Name{}}
		},
	}
	for id, bp := range bps {
		if err := blueprints.Register(id, bp); err != nil {
			return err
		}
	}
	return nil
}
