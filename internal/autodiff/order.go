package autodiff

import "fmt"

// TopoOrder returns the nodes reachable from sinks in an order where every
// node appears after all of its inputs. No node appears twice.
//
// Nodes shared between sinks (tied parameters, common subexpressions) are
// visited once.
func TopoOrder(g *Graph, sinks []NodeID) []NodeID {
	const (
		unvisited = iota
		active
		done
	)

	state := make([]uint8, g.Len())
	order := make([]NodeID, 0, g.Len())

	type frame struct {
		id   NodeID
		next int // next input to visit
	}

	for _, sink := range sinks {
		g.at(sink)
		if state[sink] == done {
			continue
		}

		stack := []frame{{id: sink}}
		state[sink] = active

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			inputs := g.nodes[top.id].inputs

			if top.next < len(inputs) {
				in := inputs[top.next]
				top.next++

				switch state[in] {
				case unvisited:
					state[in] = active
					stack = append(stack, frame{id: in})
				case active:
					panic(fmt.Sprintf("autodiff: cycle through node %d", in))
				}
				continue
			}

			state[top.id] = done
			order = append(order, top.id)
			stack = stack[:len(stack)-1]
		}
	}

	return order
}

// Eval runs the forward pass over order, which must list every node after
// its inputs (see TopoOrder). Nodes already evaluated are not recomputed.
func (g *Graph) Eval(order []NodeID) {
	for _, id := range order {
		if g.at(id).evaluated {
			continue
		}
		g.forward(id)
	}
}

// Grad runs the backward pass over the reverse of order.
//
// The sinks must already carry a seeded gradient (SetGrad). Each node adds
// its contribution into the accumulators of its inputs; nodes that received
// no gradient are skipped. Eval must have run over a congruent order first:
// backward rules read cached forward values.
func (g *Graph) Grad(order []NodeID) {
	for i := len(order) - 1; i >= 0; i-- {
		g.backward(order[i])
	}
}
