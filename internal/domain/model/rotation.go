package model

// CourtSize is the number of players a team has on court.
const CourtSize = 6

// Rotation is a team's court arrangement. Slots[0] is position 1, the server.
// Index counts rotations within the set, cycling 1..6.
type Rotation struct {
	Slots [CourtSize]PlayerID `json:"slots"`
	Index int                 `json:"index"`
}

// NewRotation starts a rotation at index 1 from a lineup in position order.
func NewRotation(slots [CourtSize]PlayerID) Rotation {
	return Rotation{Slots: slots, Index: 1}
}

// Advance moves every player one position clockwise: the player at
// position 2 becomes the server and the old server moves to position 6.
func (r Rotation) Advance() Rotation {
	var next Rotation
	for i := 0; i < CourtSize; i++ {
		next.Slots[i] = r.Slots[(i+1)%CourtSize]
	}
	next.Index = r.Index%CourtSize + 1
	return next
}

// Server returns the player at position 1.
func (r Rotation) Server() PlayerID { return r.Slots[0] }

// Position returns the 1-based court position of id, or 0 when id is not on court.
func (r Rotation) Position(id PlayerID) int {
	for i, p := range r.Slots {
		if p == id {
			return i + 1
		}
	}
	return 0
}

// Contains reports whether id is on court.
func (r Rotation) Contains(id PlayerID) bool { return r.Position(id) != 0 }

// Replace puts in into the slot held by out. Order and index are unchanged.
func (r Rotation) Replace(out, in PlayerID) (Rotation, bool) {
	pos := r.Position(out)
	if pos == 0 || in == "" || r.Contains(in) {
		return r, false
	}
	r.Slots[pos-1] = in
	return r, true
}

// Valid reports whether the rotation holds six distinct players and a
// cyclic index in 1..6.
func (r Rotation) Valid() bool {
	if r.Index < 1 || r.Index > CourtSize {
		return false
	}
	seen := make(map[PlayerID]struct{}, CourtSize)
	for _, p := range r.Slots {
		if p == "" {
			return false
		}
		if _, dup := seen[p]; dup {
			return false
		}
		seen[p] = struct{}{}
	}
	return true
}
