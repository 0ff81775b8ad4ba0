package model

import "time"

// Roles recognised across the application.  They are stored verbatim in the
// users table and embedded in access tokens under the "rol" claim.
const (
	RolAdmin     = "admin"
	RolProfesor  = "profesor"
	RolAlumno    = "alumno"
	RolPersonal  = "personal"
	RolVisitante = "visitante"
)

// ValidRole reports whether s names one of the known roles.
func ValidRole(s string) bool {
	switch s {
	case RolAdmin, RolProfesor, RolAlumno, RolPersonal, RolVisitante:
		return true
	}
	return false
}

// User represents a borrower or staff account as stored in the `users`
// table.  Rut and Correo are both unique natural keys.  Curso is only
// meaningful for alumnos (their class, e.g. "5B") and nil otherwise.
// SancionHasta, when set and in the future, blocks the user from creating
// new loans or reservations.
//
// Fields:
//  ID             – primary key identifier.
//  PrimerNombre   – first name.
//  PrimerApellido – first surname.
//  Rut            – national ID, unique.
//  Correo         – email address, unique.
//  PasswordHash   – bcrypt hashed credential.
//  Rol            – one of the Rol* constants.
//  Curso          – class/grade, required iff Rol == alumno (nullable).
//  SancionHasta   – sanction expiry instant (nullable).
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type User struct {
	ID             uint64     // users.id
	PrimerNombre   string     // users.primer_nombre
	PrimerApellido string     // users.primer_apellido
	Rut            string     // users.rut
	Correo         string     // users.correo
	PasswordHash   string     // users.password_hash
	Rol            string     // users.rol
	Curso          *string    // users.curso (nullable)
	SancionHasta   *time.Time // users.sancion_hasta (nullable)
	CreatedAt      time.Time  // users.created_at
	UpdatedAt      time.Time  // users.updated_at
}

// Sanctioned reports whether the user is under an active sanction at the
// given instant.
func (u *User) Sanctioned(now time.Time) bool {
	return u.SancionHasta != nil && u.SancionHasta.After(now)
}

// RefreshToken models a row in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
