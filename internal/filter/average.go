package filter

// MovingAverage is a fixed-capacity ring of scores. Once full it stays full,
// with new values overwriting the oldest.
type MovingAverage struct {
	values []float64
	count  int
	head   int
}

// NewMovingAverage returns a buffer holding up to capacity values.
func NewMovingAverage(capacity int) *MovingAverage {
	if capacity < 1 {
		capacity = 1
	}
	return &MovingAverage{values: make([]float64, capacity)}
}

// Enter pushes a value, evicting the oldest once the buffer is full.
func (m *MovingAverage) Enter(v float64) {
	if m.count < len(m.values) {
		m.count++
	}
	m.values[m.head] = v
	m.head = (m.head + 1) % len(m.values)
}

// EnoughData reports whether a full window of values has been seen.
func (m *MovingAverage) EnoughData() bool {
	return m.count == len(m.values)
}

// Average returns the arithmetic mean of the stored values, 0 when empty.
func (m *MovingAverage) Average() float64 {
	if m.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < m.count; i++ {
		sum += m.values[i]
	}
	return sum / float64(m.count)
}

// Clear resets the logical contents without zeroing the backing storage.
func (m *MovingAverage) Clear() {
	m.count = 0
	m.head = 0
}

// SetCapacity resizes the window and clears it. Used when navigation
// parameters are reloaded at runtime.
func (m *MovingAverage) SetCapacity(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	m.values = make([]float64, capacity)
	m.Clear()
}
