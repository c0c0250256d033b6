package cli

import (
	"context"

	"github.com/dmitrijs2005/useraccounts/internal/client/session"
	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/validation"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) ask(prompt string) (string, error) {
	return getSimpleText(a.reader, prompt, a.out)
}

func (a *App) askPassword(prompt string) (string, error) {
	pw, err := getPassword(prompt, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

func (a *App) confirm(question string) (bool, error) {
	answer, err := a.ask(question + " (s/n)")
	if err != nil {
		return false, err
	}
	return yes(answer), nil
}

// Login prompts for credentials and signs in. The switch to the home screen
// follows from the session change.
func (a *App) Login(ctx context.Context) error {
	a.setScreen(session.Login)

	email, err := a.ask("Correo electrónico")
	if err != nil {
		return err
	}
	password, err := a.askPassword("Contraseña")
	if err != nil {
		return err
	}

	if _, err := a.auth.SignIn(ctx, validation.LoginForm{Email: email, Password: password}); err != nil {
		return err
	}
	a.println("Sesión iniciada")
	return nil
}

// Register prompts for the registration form and creates the account
// together with its profile record.
func (a *App) Register(ctx context.Context) error {
	a.setScreen(session.Register)

	var f validation.RegistrationForm
	prompts := []struct {
		prompt string
		dst    *string
	}{
		{"Nombre completo", &f.Name},
		{"Correo electrónico", &f.Email},
		{"Edad (18-100)", &f.Age},
		{"Especialidad", &f.Specialty},
	}
	for _, p := range prompts {
		v, err := a.ask(p.prompt)
		if err != nil {
			return err
		}
		*p.dst = v
	}

	var err error
	if f.Password, err = a.askPassword("Contraseña"); err != nil {
		return err
	}
	if f.ConfirmPassword, err = a.askPassword("Confirmar contraseña"); err != nil {
		return err
	}

	if _, err := a.auth.SignUp(ctx, f); err != nil {
		return err
	}
	a.println("Cuenta creada correctamente")
	return nil
}

// Logout asks for confirmation and ends the session.
func (a *App) Logout(ctx context.Context) error {
	ok, err := a.confirm("¿Estás seguro de que deseas cerrar sesión?")
	if err != nil || !ok {
		return err
	}
	if err := a.auth.SignOut(ctx); err != nil {
		return err
	}
	a.println("Sesión cerrada")
	return nil
}
