package mockdb

type table[T any] struct {
	rows  []T
	id    func(T) int
	setID func(*T, int)
}

// nextID is max(existing)+1, or 1 for an empty table.
func (t *table[T]) nextID() int {
	max := 0
	for _, row := range t.rows {
		if id := t.id(row); id > max {
			max = id
		}
	}
	return max + 1
}

func (t *table[T]) index(id int) int {
	for i, row := range t.rows {
		if t.id(row) == id {
			return i
		}
	}
	return -1
}

func (t *table[T]) get(id int) (T, bool) {
	if i := t.index(id); i >= 0 {
		return t.rows[i], true
	}
	var zero T
	return zero, false
}

func (t *table[T]) insert(row T) T {
	t.setID(&row, t.nextID())
	t.rows = append(t.rows, row)
	return row
}

func (t *table[T]) update(id int, fn func(*T) error) (T, error) {
	var zero T
	i := t.index(id)
	if i < 0 {
		return zero, ErrNotFound
	}
	row := t.rows[i]
	if err := fn(&row); err != nil {
		return zero, err
	}
	t.setID(&row, id)
	t.rows[i] = row
	return row, nil
}

func (t *table[T]) remove(id int) bool {
	i := t.index(id)
	if i < 0 {
		return false
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	return true
}

func (t *table[T]) where(match func(T) bool) []T {
	out := []T{}
	for _, row := range t.rows {
		if match(row) {
			out = append(out, row)
		}
	}
	return out
}

func (t *table[T]) removeWhere(match func(T) bool) int {
	kept := t.rows[:0]
	removed := 0
	for _, row := range t.rows {
		if match(row) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	t.rows = kept
	return removed
}

func (t *table[T]) all() []T {
	return append([]T{}, t.rows...)
}
