package models

// Page sélectionne une page (1-indexée) d'une liste.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// PageResult est l'enveloppe JSON des listes paginées.
type PageResult[T any] struct {
	Count    int  `json:"count"`
	Next     *int `json:"next"`
	Previous *int `json:"previous"`
	Results  []T  `json:"results"`
}

// NewPageResult construit l'enveloppe à partir du total et de la page demandée.
func NewPageResult[T any](items []T, total int, p Page) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	res := PageResult[T]{Count: total, Results: items}
	if p.Number > 1 {
		prev := p.Number - 1
		res.Previous = &prev
	}
	if p.Size > 0 && p.Offset()+len(items) < total {
		next := p.Number + 1
		res.Next = &next
	}
	return res
}
