package core

import "sort"

// Presence is the set of nicknames with at least one authenticated live
// connection. Each nickname is reference counted by connection so that a user
// logged in twice stays present until the last connection goes away.
// Presence is not safe for concurrent use; the Hub guards it.
type Presence struct {
	conns map[string]int
}

// NewPresence returns an empty presence set.
func NewPresence() *Presence {
	return &Presence{conns: make(map[string]int)}
}

// Add records one more connection for nick. Returns true if nick was absent.
func (p *Presence) Add(nick string) bool {
	p.conns[nick]++
	return p.conns[nick] == 1
}

// Remove drops one connection for nick. Returns true if it was the last one.
func (p *Presence) Remove(nick string) bool {
	n, ok := p.conns[nick]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(p.conns, nick)
		return true
	}
	p.conns[nick] = n - 1
	return false
}

// Contains reports whether nick is present.
func (p *Presence) Contains(nick string) bool {
	_, ok := p.conns[nick]
	return ok
}

// Connections returns how many live connections are logged in as nick.
func (p *Presence) Connections(nick string) int {
	return p.conns[nick]
}

// Members returns the present nicknames in sorted order.
func (p *Presence) Members() []string {
	out := make([]string, 0, len(p.conns))
	for nick := range p.conns {
		out = append(out, nick)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of distinct present nicknames.
func (p *Presence) Len() int {
	return len(p.conns)
}
