package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the primary key is unset. Postgres also
// defaults ids with gen_random_uuid(); the sqlite schema does not.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
