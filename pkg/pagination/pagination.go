package pagination

type Params struct {
	Page     int
	PageSize int
}

// Bounds returns the slice bounds of the requested page within total items.
// A zero page size selects everything.
func (p Params) Bounds(total int) (start, end int) {
	if p.PageSize <= 0 {
		return 0, total
	}

	page := max(p.Page, 1)
	start = min((page-1)*p.PageSize, total)
	end = min(start+p.PageSize, total)
	return start, end
}

func (p Params) BuildMeta(totalItems int) Meta {
	totalPages := 0
	if p.PageSize > 0 {
		totalPages = (totalItems + p.PageSize - 1) / p.PageSize
	}
	return Meta{
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

type Meta struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// Page returns one page of items along with its metadata
func Page[T any](items []T, p Params) ([]T, Meta) {
	start, end := p.Bounds(len(items))
	return items[start:end], p.BuildMeta(len(items))
}
