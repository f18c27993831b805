package icon

// BitWeight favors deeper color: 32 bpp over 24 over 8 over everything else.
func BitWeight(bitCount uint16) int {
	switch bitCount {
	case 32:
		return 4
	case 24:
		return 3
	case 8:
		return 2
	}
	return 1
}

// Score is width*height*BitWeight.
func Score(e GroupEntry) int {
	return e.Width * e.Height * BitWeight(e.BitCount)
}

// Select returns the entry with the highest score. Ties go to the earliest entry.
func Select(g *Group) (GroupEntry, bool) {
	if g == nil || len(g.Entries) == 0 {
		return GroupEntry{}, false
	}
	best := g.Entries[0]
	bestScore := Score(best)
	for _, e := range g.Entries[1:] {
		if s := Score(e); s > bestScore {
			best, bestScore = e, s
		}
	}
	return best, true
}
