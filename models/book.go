package models

// Book represents one entry of the catalog. Identity is positional.
type Book struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// NewBook creates a new Book instance
func NewBook(title, author string) Book {
	return Book{
		Title:  title,
		Author: author,
	}
}
