package model

import "time"

// Book is a catalog entry.  Physical copies live in the `exemplars` table;
// deleting a book cascades to its exemplars.
//
// Fields:
//  ID        – primary key identifier.
//  Titulo    – title.
//  Autor     – author.
//  ISBN      – ISBN, may be empty for old stock.
//  Editorial – publisher.
//  Sede      – campus holding the book.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Book struct {
	ID        uint64    // books.id
	Titulo    string    // books.titulo
	Autor     string    // books.autor
	ISBN      string    // books.isbn
	Editorial string    // books.editorial
	Sede      string    // books.sede
	CreatedAt time.Time // books.created_at
	UpdatedAt time.Time // books.updated_at
}

// Exemplar is one physical copy of a book.  NumeroCopia is 1-based and
// unique within its book.
//
// Fields:
//  ID            – primary key identifier.
//  LibroID       – owning book.
//  NumeroCopia   – sequential copy number within the book.
//  Estado        – one of the Estado* item states.
//  Observaciones – free-text operator notes (nullable).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Exemplar struct {
	ID            uint64    // exemplars.id
	LibroID       uint64    // exemplars.libro_id
	NumeroCopia   uint32    // exemplars.numero_copia
	Estado        string    // exemplars.estado
	Observaciones *string   // exemplars.observaciones (nullable)
	CreatedAt     time.Time // exemplars.created_at
	UpdatedAt     time.Time // exemplars.updated_at
}
