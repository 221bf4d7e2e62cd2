package stream

import cmap "github.com/orcaman/concurrent-map/v2"

type closer interface {
	Close()
}

// Group tracks the open streams of one owner so they can be closed together.
type Group struct {
	streams cmap.ConcurrentMap[string, closer]
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{streams: cmap.New[closer]()}
}

func (g *Group) track(s interface {
	closer
	ID() string
}) {
	g.streams.Set(s.ID(), s)
}

func (g *Group) untrack(id string) {
	g.streams.Remove(id)
}

// Len returns the number of open streams.
func (g *Group) Len() int {
	return g.streams.Count()
}

// CloseAll closes every open stream and waits for their teardowns.
func (g *Group) CloseAll() {
	for _, s := range g.streams.Items() {
		s.Close()
	}
}
