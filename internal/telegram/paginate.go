package telegram

const pageSize = 10

// paginate returns the items on page n (1-based, clamped to the valid range)
// together with the clamped page number and the page count. An empty list
// has one empty page.
func paginate[T any](items []T, n, size int) ([]T, int, int) {
	total := (len(items) + size - 1) / size
	if total == 0 {
		total = 1
	}
	if n < 1 {
		n = 1
	}
	if n > total {
		n = total
	}
	from := (n - 1) * size
	to := from + size
	if to > len(items) {
		to = len(items)
	}
	return items[from:to], n, total
}
