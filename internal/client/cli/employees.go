package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/client/services"
	"github.com/dmitrijs2005/useraccounts/internal/client/session"
	"github.com/dmitrijs2005/useraccounts/internal/validation"
)

var (
	ErrNotListed = errors.New("primero lista los empleados con 'employees'")
	ErrBadIndex  = errors.New("número de empleado inválido")
	ErrBadSalary = errors.New("salario inválido")
)

// timeNow is a test seam for the hiring date.
var timeNow = time.Now

func renderEmployee(w io.Writer, n int, e services.Employee) {
	state := "Activo"
	if !e.Active {
		state = "Inactivo"
	}
	fmt.Fprintf(w, "%d. %s [%s]\n", n, e.Name, state)
	fmt.Fprintf(w, "   Correo: %s  Edad: %d  Especialidad: %s\n", e.Email, e.Age, e.Specialty)
	if e.Position != "" {
		fmt.Fprintf(w, "   Puesto: %s\n", e.Position)
	}
	if e.Phone != "" {
		fmt.Fprintf(w, "   Teléfono: %s\n", e.Phone)
	}
}

// Employees lists the employee records and remembers the order for toggle
// and delete.
func (a *App) Employees(ctx context.Context) error {
	a.setScreen(session.Home)
	list, err := a.employees.List(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.listed = list
	a.mu.Unlock()

	a.outMu.Lock()
	defer a.outMu.Unlock()
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No hay empleados registrados")
		return nil
	}
	for i, e := range list {
		renderEmployee(a.out, i+1, e)
	}
	return nil
}

// AddEmployee prompts for a new employee record.
func (a *App) AddEmployee(ctx context.Context) error {
	var e services.Employee
	var age, salary string
	prompts := []struct {
		prompt string
		dst    *string
	}{
		{"Nombre", &e.Name},
		{"Correo electrónico", &e.Email},
		{"Edad (18-100)", &age},
		{"Especialidad", &e.Specialty},
		{"Puesto", &e.Position},
		{"Teléfono", &e.Phone},
		{"Salario", &salary},
	}
	for _, p := range prompts {
		v, err := a.ask(p.prompt)
		if err != nil {
			return err
		}
		*p.dst = v
	}

	n, err := validation.ParseAge(age)
	if err != nil {
		return err
	}
	e.Age = n
	if s := strings.TrimSpace(salary); s != "" {
		if e.Salary, err = strconv.ParseFloat(s, 64); err != nil {
			return ErrBadSalary
		}
	}
	e.HiredAt = timeNow()
	e.Active = true

	created, err := a.employees.Create(ctx, e)
	if err != nil {
		return err
	}
	a.println("Empleado agregado correctamente:", created.Name)
	return nil
}

// pick resolves the 1-based employee number in args against the last list.
func (a *App) pick(args []string) (int, services.Employee, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listed == nil {
		return 0, services.Employee{}, ErrNotListed
	}
	if len(args) == 0 {
		return 0, services.Employee{}, ErrBadIndex
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(a.listed) {
		return 0, services.Employee{}, ErrBadIndex
	}
	return n - 1, a.listed[n-1], nil
}

// Toggle flips the active flag of the employee numbered args[0].
func (a *App) Toggle(ctx context.Context, args []string) error {
	i, e, err := a.pick(args)
	if err != nil {
		return err
	}
	action := "activar"
	if e.Active {
		action = "desactivar"
	}
	ok, err := a.confirm(fmt.Sprintf("¿Deseas %s al empleado %s?", action, e.Name))
	if err != nil || !ok {
		return err
	}

	active, err := a.employees.Toggle(ctx, e)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if i < len(a.listed) && a.listed[i].ID == e.ID {
		a.listed[i].Active = active
	}
	a.mu.Unlock()

	done := "activado"
	if !active {
		done = "desactivado"
	}
	a.println("Empleado", done, "correctamente")
	return nil
}

// DeleteEmployee removes the employee numbered args[0].
func (a *App) DeleteEmployee(ctx context.Context, args []string) error {
	i, e, err := a.pick(args)
	if err != nil {
		return err
	}
	ok, err := a.confirm(fmt.Sprintf("¿Estás seguro de que deseas eliminar a %s?", e.Name))
	if err != nil || !ok {
		return err
	}
	if err := a.employees.Delete(ctx, e.ID); err != nil {
		return err
	}

	a.mu.Lock()
	if i < len(a.listed) && a.listed[i].ID == e.ID {
		a.listed = append(a.listed[:i:i], a.listed[i+1:]...)
	}
	a.mu.Unlock()

	a.println("Empleado eliminado correctamente")
	return nil
}
