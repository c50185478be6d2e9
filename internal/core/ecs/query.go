package ecs

// Filter narrows query candidates.
type Filter func(*Entity) bool

// Query returns one sequence per kind such that position i in every
// sequence belongs to the same entity and that entity has all kinds
// attached. The smallest index group is used as the probe set, so the cost
// follows the rarest kind rather than the entity count. The result is a
// snapshot: later changes to the world do not alter it.
//
// Querying no kinds matches nothing.
func (w *World) Query(kinds ...Kind) [][]Component {
	return w.QueryFiltered(nil, kinds...)
}

// QueryFiltered is Query with candidates dropped when filter rejects them.
func (w *World) QueryFiltered(filter Filter, kinds ...Kind) [][]Component {
	out := make([][]Component, len(kinds))
	if len(kinds) == 0 {
		return out
	}

	probe := w.index[kinds[0]]
	for _, kind := range kinds[1:] {
		if group := w.index[kind]; len(group) < len(probe) {
			probe = group
		}
	}

	for k := range out {
		out[k] = make([]Component, 0, len(probe))
	}

	row := make([]Component, len(kinds))
candidates:
	for _, candidate := range probe {
		e := candidate.Entity()
		if e == nil || (filter != nil && !filter(e)) {
			continue
		}
		for k, kind := range kinds {
			c, ok := e.byKind[kind]
			if !ok {
				continue candidates
			}
			row[k] = c
		}
		for k := range kinds {
			out[k] = append(out[k], row[k])
		}
	}
	return out
}

// QueryEntities returns the entities matched by Query.
func (w *World) QueryEntities(kinds ...Kind) []*Entity {
	groups := w.Query(kinds...)
	if len(groups) == 0 {
		return nil
	}
	out := make([]*Entity, len(groups[0]))
	for i, c := range groups[0] {
		out[i] = c.Entity()
	}
	return out
}

// Query1 returns every live component of type A.
func Query1[A Component](w *World) []A {
	groups := w.Query(mustKind[A](w))
	return typed[A](groups[0])
}

// Query2 returns parallel sequences of A and B components.
func Query2[A, B Component](w *World) ([]A, []B) {
	groups := w.Query(mustKind[A](w), mustKind[B](w))
	return typed[A](groups[0]), typed[B](groups[1])
}

// Query3 returns parallel sequences of A, B and C components.
func Query3[A, B, C Component](w *World) ([]A, []B, []C) {
	groups := w.Query(mustKind[A](w), mustKind[B](w), mustKind[C](w))
	return typed[A](groups[0]), typed[B](groups[1]), typed[C](groups[2])
}

// mustKind panics for unregistered types: querying one is a programming
// error, not a runtime condition.
func mustKind[C Component](w *World) Kind {
	k, err := KindFor[C](w.registry)
	if err != nil {
		panic(err)
	}
	return k
}

func typed[C Component](in []Component) []C {
	out := make([]C, 0, len(in))
	for _, c := range in {
		if t, ok := c.(C); ok {
			out = append(out, t)
		}
	}
	return out
}
