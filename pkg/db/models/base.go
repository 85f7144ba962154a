package models

import "github.com/google/uuid"

// ensureID assigns a fresh id when the caller left it empty. Ids are generated
// in Go so rows can be referenced before insert and so the models stay portable
// across postgres and sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
