package simcore_test

import (
	"fmt"

	"github.com/duskwright/simcore"
)

type Position struct{ X, Y float64 }
type Velocity struct{ X, Y float64 }

func Example() {
	world := simcore.NewWorld(simcore.DefaultConfig())

	position := simcore.RegisterComponent[Position](world, simcore.HotArchetype)
	velocity := simcore.RegisterComponent[Velocity](world, simcore.HotArchetype)

	e, _ := world.CreateEntity()
	position.Emplace(e, Position{X: 0, Y: 0})
	velocity.Emplace(e, Velocity{X: 1, Y: 2})

	simcore.Each2(world, nil,
		simcore.Req(position, simcore.AccessMut),
		simcore.Req(velocity, simcore.AccessConst),
		func(_ simcore.Entity, pos *simcore.Ref[Position], vel *simcore.Ref[Velocity]) {
			pos.Get().X += vel.Get().X
			pos.Get().Y += vel.Get().Y
			pos.Touch()
		})

	got := position.Get(e)
	fmt.Printf("%.0f %.0f\n", got.X, got.Y)
	// Output: 1 2
}
