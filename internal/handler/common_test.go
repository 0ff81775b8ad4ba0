package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proyecto-sophia/cra-backend/internal/model"
	"github.com/proyecto-sophia/cra-backend/internal/repository"
)

func actorContext(uid uint64, rol string) echo.Context {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Set("user_id", uid)
	c.Set("rol", rol)
	return c
}

func TestAuthorizeActor(t *testing.T) {
	assert.NoError(t, authorizeActor(actorContext(4, model.RolAlumno), 4))
	assert.NoError(t, authorizeActor(actorContext(1, model.RolAdmin), 4))
	assert.NoError(t, authorizeActor(actorContext(2, model.RolPersonal), 4))
	assert.ErrorIs(t, authorizeActor(actorContext(3, model.RolAlumno), 4), repository.ErrForbidden)
	// Profesores are exempt from the item limit, not from ownership.
	assert.ErrorIs(t, authorizeActor(actorContext(5, model.RolProfesor), 4), repository.ErrForbidden)

	// Context without the JWT middleware having run.
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := authorizeActor(c, 4)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrForbidden)
}

func TestBindItemRef(t *testing.T) {
	ref, err := bindItemRef("Exemplar", 12)
	require.NoError(t, err)
	assert.Equal(t, model.KindExemplar, ref.Kind)
	assert.Equal(t, uint64(12), ref.ID)

	_, err = bindItemRef("Exemplar", 0)
	assert.Error(t, err)

	_, err = bindItemRef("Tablet", 12)
	assert.Error(t, err)
}

func TestRegisterRequestValidate(t *testing.T) {
	curso := "5B"
	base := registerRequest{
		PrimerNombre:   "Ana",
		PrimerApellido: "Rojas",
		Rut:            "12.345.678-9",
		Correo:         "Ana.Rojas@Colegio.cl",
		Password:       "supersecret",
		Rol:            model.RolAlumno,
		Curso:          &curso,
	}

	t.Run("valid alumno normalizes correo", func(t *testing.T) {
		req := base
		require.NoError(t, req.validate())
		assert.Equal(t, "ana.rojas@colegio.cl", req.Correo)
	})

	t.Run("alumno without curso rejected", func(t *testing.T) {
		req := base
		req.Curso = nil
		assert.Error(t, req.validate())
	})

	t.Run("short password rejected", func(t *testing.T) {
		req := base
		req.Password = "short"
		assert.Error(t, req.validate())
	})

	t.Run("unknown rol rejected", func(t *testing.T) {
		req := base
		req.Rol = "director"
		assert.Error(t, req.validate())
	})

	t.Run("profesor needs no curso", func(t *testing.T) {
		req := base
		req.Rol = model.RolProfesor
		req.Curso = nil
		assert.NoError(t, req.validate())
	})
}

func TestResourceRequestValidate(t *testing.T) {
	req := resourceRequest{Nombre: "Proyector Epson", Categoria: "tecnologia", CodigoBase: "proj", Unidades: 3}
	require.NoError(t, req.validate(true))
	assert.Equal(t, "PROJ", req.CodigoBase)

	req = resourceRequest{Nombre: "Proyector", Categoria: "tecnologia", Unidades: 3}
	assert.Error(t, req.validate(true), "creating unidades without codigoBase")
	assert.NoError(t, req.validate(false), "updates do not mint codes")
}

func TestBookRequestValidate(t *testing.T) {
	req := bookRequest{Titulo: "Papelucho", Autor: "Marcela Paz", Copias: 4}
	assert.NoError(t, req.validate())

	req.Titulo = "  "
	assert.Error(t, req.validate())

	req = bookRequest{Titulo: "Papelucho", Autor: "Marcela Paz", Copias: 501}
	assert.Error(t, req.validate())
}
