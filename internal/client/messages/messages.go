// Package messages renders errors as the user-facing Spanish texts of the
// client.
package messages

import (
	"errors"

	"github.com/dmitrijs2005/useraccounts/internal/client/backend"
	"github.com/dmitrijs2005/useraccounts/internal/client/profile"
	"github.com/dmitrijs2005/useraccounts/internal/client/services"
	"github.com/dmitrijs2005/useraccounts/internal/validation"
)

const (
	PartialSignUp = "La cuenta fue creada, pero los datos del perfil quedaron incompletos. Complétalos desde Editar perfil"
	ProfileWrite  = "No se pudieron guardar los datos del perfil"
)

// table is checked in order; the first sentinel err matches wins.
var table = []struct {
	err error
	msg string
}{
	{backend.ErrEmailInUse, "Este correo electrónico ya está en uso"},
	{backend.ErrInvalidEmail, "El correo electrónico no es válido"},
	{backend.ErrWeakPassword, "La contraseña debe tener al menos 6 caracteres"},
	{backend.ErrWeakCredential, "La nueva contraseña es muy débil"},
	{backend.ErrUserNotFound, "No existe una cuenta con este correo electrónico"},
	{backend.ErrWrongCredential, "Contraseña incorrecta"},
	{backend.ErrUserDisabled, "Esta cuenta ha sido deshabilitada"},
	{backend.ErrTooManyAttempts, "Demasiados intentos fallidos. Intenta más tarde"},
	{backend.ErrRequiresRecentAuth, "Por seguridad, debes iniciar sesión nuevamente antes de cambiar datos sensibles"},
	{backend.ErrNetwork, "Error de conexión. Verifica tu internet"},
	{backend.ErrUnauthenticated, "No hay usuario autenticado"},
	{backend.ErrPermissionDenied, "No tienes permiso para realizar esta acción"},
	{backend.ErrNotFound, "El registro no existe"},
}

// For returns the message shown for err. Errors outside the table render as
// "Error: " followed by their text.
func For(err error) string {
	if err == nil {
		return ""
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		return verr.Message
	}

	var partial *services.PartialSignUpError
	if errors.As(err, &partial) {
		return PartialSignUp
	}

	var serr *profile.SaveError
	if errors.As(err, &serr) && serr.Step == profile.StepDocument {
		if msg, ok := lookup(serr.Err); ok {
			return ProfileWrite + ". " + msg
		}
		return ProfileWrite
	}

	if msg, ok := lookup(err); ok {
		return msg
	}
	return "Error: " + err.Error()
}

func lookup(err error) (string, bool) {
	for _, e := range table {
		if errors.Is(err, e.err) {
			return e.msg, true
		}
	}
	return "", false
}
