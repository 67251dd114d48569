package sequence

// Data is a set of instances with per-label importance weights
type Data struct {
	Instances  []Instance
	importance map[string]float64
}

func NewData(instances []Instance) *Data {
	return &Data{Instances: instances}
}

func (d *Data) Len() int {
	return len(d.Instances)
}

// ComputeImportance sets each gold label's importance to the inverse of its
// relative frequency, scaled so the most frequent label has importance 1.
func (d *Data) ComputeImportance() {
	counts := make(map[string]int)
	var most int
	for _, inst := range d.Instances {
		gold := inst.Gold()
		for i := 0; i < gold.Len(); i++ {
			key := gold.At(i).String()
			counts[key]++
			if counts[key] > most {
				most = counts[key]
			}
		}
	}
	d.importance = make(map[string]float64, len(counts))
	for key, count := range counts {
		d.importance[key] = float64(most) / float64(count)
	}
}

// Importance returns 1 for labels that were never counted
func (d *Data) Importance(u LabelUnit) float64 {
	if d == nil || d.importance == nil {
		return 1
	}
	if imp, exists := d.importance[u.String()]; exists {
		return imp
	}
	return 1
}
