package catalog

import (
	"github.com/upb/book-feed/models"
)

// defaultBooks is the fixed content served by every process.
var defaultBooks = []models.Book{
	models.NewBook("Harry Potter and the Chamber of Secrets", "J.K. Rowling"),
	models.NewBook("Jurassic Park", "Michael Crichton"),
}

// CatalogService is the read-only data source. It is immutable once
// constructed, so it is safe for concurrent use without locking.
type CatalogService struct {
	books []models.Book
}

// NewCatalogService creates a catalog holding the two default books
func NewCatalogService() *CatalogService {
	return NewCatalogServiceWith(defaultBooks)
}

// NewCatalogServiceWith creates a catalog holding a copy of books.
func NewCatalogServiceWith(books []models.Book) *CatalogService {
	return &CatalogService{books: copyBooks(books)}
}

// List returns every book in configured order. The slice is a copy.
func (s *CatalogService) List() []models.Book {
	return copyBooks(s.books)
}

// First returns the first configured book, reporting false on an empty catalog.
func (s *CatalogService) First() (models.Book, bool) {
	if len(s.books) == 0 {
		return models.Book{}, false
	}
	return s.books[0], true
}

func copyBooks(books []models.Book) []models.Book {
	out := make([]models.Book, len(books))
	copy(out, books)
	return out
}
