package notes

import "time"

// Note is owned by UserID. UserID and CourseID never change after creation.
type Note struct {
	ID        string    `json:"id"`
	Title     *string   `json:"title,omitempty"`
	Content   string    `json:"content"`
	UserID    int64     `json:"userId"`
	CourseID  int64     `json:"courseId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewNote is the caller-supplied part of a note; the store assigns the rest.
type NewNote struct {
	Title    *string
	Content  string
	UserID   int64
	CourseID int64
}

// Patch holds the mutable fields. Nil fields are left unchanged.
type Patch struct {
	Title   *string
	Content *string
}

type UserCount struct {
	UserID    int64 `json:"userId"`
	NoteCount int   `json:"noteCount"`
}

type CourseCount struct {
	CourseID  int64 `json:"courseId"`
	NoteCount int   `json:"noteCount"`
}

// document is the on-disk shape of the backing file.
type document struct {
	Notes *[]Note `json:"notes"`
}

// storedNote mirrors Note with pointers so a missing field is told apart
// from a zero one when parsing.
type storedNote struct {
	ID        *string    `json:"id"`
	Title     *string    `json:"title"`
	Content   *string    `json:"content"`
	UserID    *int64     `json:"userId"`
	CourseID  *int64     `json:"courseId"`
	CreatedAt *time.Time `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

type storedDocument struct {
	Notes *[]storedNote `json:"notes"`
}
