/*
Package simcore is the simulation runtime core of a real-time rendering
engine: an Entity-Component-System world with archetype-chunked storage,
a structural command buffer with copy-on-write undo, and the query engine
systems use to read and mutate it.

Core Concepts:

  - Entity: a generational (index, generation) handle to a game object.
  - Component: a typed attribute attached to an entity, with a declared
    residency (HotArchetype: chunked columnar storage, or ColdSparse: a
    sparse-to-dense map).
  - Archetype: the set of HotArchetype component types an entity currently
    has; owns a sequence of fixed-capacity chunks.
  - Query: a required/optional/excluded component-set filter over
    archetypes, iterated chunk-by-chunk.
  - CommandBuffer: a per-system recorder of deferred structural mutations
    (create/destroy/add/remove/set), merged and replayed at batch
    barriers (PostSim-tagged commands) and once at end of frame
    (EndFrame-tagged commands) with validate-then-apply-or-rollback
    semantics.

Basic Usage:

	world := simcore.NewWorld(simcore.DefaultConfig())

	position := simcore.RegisterComponent[Position](world, simcore.HotArchetype)
	velocity := simcore.RegisterComponent[Velocity](world, simcore.HotArchetype)

	entities, _ := world.CreateEntities(100)
	for _, e := range entities {
		position.Emplace(e, Position{})
		velocity.Emplace(e, Velocity{X: 1})
	}

	simcore.Each2(world, nil,
		simcore.Req(position, simcore.AccessMut),
		simcore.Req(velocity, simcore.AccessConst),
		func(e simcore.Entity, pos *simcore.Ref[Position], vel *simcore.Ref[Velocity]) {
			pos.Get().X += vel.Get().X
			pos.Get().Y += vel.Get().Y
			pos.Touch()
		})

The companion packages scheduler, render, snapshot, journal, and asset build
on top of this core: scheduler runs systems in conflict-free parallel
batches, render extracts per-chunk change-tracked draw data, snapshot hands
frames to a renderer thread over a staged SPSC ring, journal runs
DAG-ordered multi-entry transactions, and asset models the pull-based
catalog the simulation consumes from an external asset service.
*/
package simcore
