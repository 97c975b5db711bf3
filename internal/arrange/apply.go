package arrange

// Apply writes the engine results back to the scene and returns the
// highest bed index used by selected or fixed items. Unprintable items are
// moved onto the beds after that one. Items the engine could not place
// keep their transform.
func (p *Partition) Apply() int {
	beds := 0
	for i, ap := range p.Selected.Polys {
		if !ap.Arranged {
			continue
		}
		beds = max(beds, ap.BedIndex)
		p.Selected.Items[i].ApplyArrangeResult(ap, p.Stride)
	}
	for _, ap := range p.Unselected.Polys {
		beds = max(beds, ap.BedIndex)
	}

	for i := range p.Unprintable.Polys {
		ap := &p.Unprintable.Polys[i]
		if !ap.Arranged {
			continue
		}
		ap.BedIndex += beds + 1
		p.Unprintable.Items[i].ApplyArrangeResult(*ap, p.Stride)
	}
	return beds
}
