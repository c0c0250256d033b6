package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/client/profile"
	"github.com/dmitrijs2005/useraccounts/internal/client/session"
	"github.com/dmitrijs2005/useraccounts/internal/validation"
)

const (
	hintIncomplete = "Tu perfil está incompleto. Escribe 'edit' para completarlo"
	bannerOffline  = "Conexión limitada - Mostrando datos básicos. Escribe 'refresh' para reintentar"
	bannerStale    = "Sin conexión - Mostrando los últimos datos guardados. Escribe 'refresh' para reintentar"
)

// ErrNoAvatar is returned by GetAvatar when the profile has no picture.
var ErrNoAvatar = errors.New("no tienes foto de perfil")

func formatDate(t time.Time) string {
	if t.IsZero() {
		return profile.PlaceholderUnspecified
	}
	return t.Format("02/01/2006")
}

// renderView writes the home screen for v.
func renderView(w io.Writer, v profile.View) {
	switch {
	case v.Stale:
		fmt.Fprintln(w, bannerStale)
	case v.Status == profile.Offline:
		fmt.Fprintln(w, bannerOffline)
	}

	fmt.Fprintln(w, "¡Bienvenido!", v.DisplayName)
	fmt.Fprintln(w, "Mi Información")
	fmt.Fprintln(w, "  Nombre Completo:   ", v.DisplayName)
	fmt.Fprintln(w, "  Correo Electrónico:", v.Email)
	fmt.Fprintln(w, "  Edad:              ", v.Age)
	fmt.Fprintln(w, "  Especialidad:      ", v.Specialty)

	if v.Status == profile.Fresh || v.Stale {
		fmt.Fprintln(w, "  Fecha de Registro: ", formatDate(v.RegisteredAt))
		state := "Inactivo"
		if v.Active {
			state = "Activo"
		}
		fmt.Fprintln(w, "  Estado:            ", state)
		if !v.LastModified.IsZero() {
			fmt.Fprintln(w, "  Última modificación:", formatDate(v.LastModified))
		}
		if v.AvatarKey != "" {
			fmt.Fprintln(w, "  Foto de perfil:    ", v.AvatarKey)
		}
	}

	if v.NeedsCompletion {
		fmt.Fprintln(w, hintIncomplete)
	}
}

// Home switches to the home screen and shows the current profile view.
func (a *App) Home(ctx context.Context) error {
	a.setScreen(session.Home)
	v, ok := a.profile.View()
	if !ok {
		a.println(profile.PlaceholderLoading)
		return nil
	}
	a.outMu.Lock()
	defer a.outMu.Unlock()
	renderView(a.out, v)
	return nil
}

// Refresh fetches the profile again and waits for the outcome, which is
// rendered by the view subscription.
func (a *App) Refresh(ctx context.Context) error {
	a.setScreen(session.Home)
	select {
	case <-a.profile.Refresh(ctx):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// editable drops placeholders so the prompt offers only real values.
func editable(value string) string {
	switch value {
	case profile.PlaceholderLoading, profile.PlaceholderUnregistered,
		profile.PlaceholderOffline, profile.PlaceholderUnspecified:
		return ""
	}
	return value
}

// Edit prompts for the profile form, prefilled with the current view, and
// saves it.
func (a *App) Edit(ctx context.Context) error {
	a.setScreen(session.EditProfile)
	v, _ := a.profile.View()

	a.println("Editar Perfil - Actualiza tu información personal (Enter conserva el valor actual)")

	var f validation.ProfileForm
	prompts := []struct {
		prompt  string
		current string
		dst     *string
	}{
		{"Nombre Completo", v.DisplayName, &f.Name},
		{"Correo Electrónico", v.Email, &f.Email},
		{"Edad (18-100)", editable(v.Age), &f.Age},
		{"Especialidad", editable(v.Specialty), &f.Specialty},
	}
	for _, p := range prompts {
		prompt := p.prompt
		if p.current != "" {
			prompt = fmt.Sprintf("%s [%s]", p.prompt, p.current)
		}
		val, err := a.ask(prompt)
		if err != nil {
			return err
		}
		if strings.TrimSpace(val) == "" {
			val = p.current
		}
		*p.dst = val
	}

	change, err := a.confirm("¿Cambiar contraseña?")
	if err != nil {
		return err
	}
	if change {
		if f.NewPassword, err = a.askPassword("Nueva contraseña"); err != nil {
			return err
		}
		if f.ConfirmPassword, err = a.askPassword("Confirmar nueva contraseña"); err != nil {
			return err
		}
	}

	if err := a.profile.Save(ctx, f); err != nil {
		return err
	}
	a.println("Perfil actualizado correctamente")
	return a.Home(ctx)
}

// Avatar uploads the image at args[0] as the profile picture.
func (a *App) Avatar(ctx context.Context, args []string) error {
	a.setScreen(session.EditProfile)
	path, err := argOrAsk(a, args, "Ruta de la imagen")
	if err != nil {
		return err
	}
	if _, err := a.avatars.Upload(ctx, path); err != nil {
		return err
	}
	a.println("Foto de perfil actualizada")
	return nil
}

// GetAvatar saves the profile picture to args[0].
func (a *App) GetAvatar(ctx context.Context, args []string) error {
	v, _ := a.profile.View()
	if v.AvatarKey == "" {
		return ErrNoAvatar
	}
	dest, err := argOrAsk(a, args, "Guardar en")
	if err != nil {
		return err
	}
	if err := a.avatars.Download(ctx, v.AvatarKey, dest); err != nil {
		return err
	}
	a.println("Foto de perfil guardada en", dest)
	return nil
}

func argOrAsk(a *App, args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return a.ask(prompt)
}
