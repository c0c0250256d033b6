package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/client/backend"
	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/validation"
	"github.com/google/uuid"
)

// Employee is a record of the admin list. It has no owner; any signed-in
// user may change it and the last write wins.
type Employee struct {
	ID        string
	Name      string
	Email     string
	Age       int
	Specialty string
	Phone     string
	Position  string
	Salary    float64
	HiredAt   time.Time
	Active    bool
}

func (e Employee) Document() backend.Document {
	doc := backend.Document{
		"nombre":       e.Name,
		"correo":       e.Email,
		"edad":         e.Age,
		"especialidad": e.Specialty,
		"telefono":     e.Phone,
		"puesto":       e.Position,
		"salario":      e.Salary,
		"activo":       e.Active,
	}
	if !e.HiredAt.IsZero() {
		doc["fechaIngreso"] = e.HiredAt.UTC().Format(time.RFC3339)
	}
	return doc
}

func DecodeEmployee(id string, doc backend.Document) Employee {
	e := Employee{ID: id}
	e.Name, _ = doc["nombre"].(string)
	e.Email, _ = doc["correo"].(string)
	e.Specialty, _ = doc["especialidad"].(string)
	e.Phone, _ = doc["telefono"].(string)
	e.Position, _ = doc["puesto"].(string)
	e.Active, _ = doc["activo"].(bool)
	if n, ok := doc["edad"].(float64); ok {
		e.Age = int(n)
	}
	if n, ok := doc["salario"].(float64); ok {
		e.Salary = n
	}
	if s, ok := doc["fechaIngreso"].(string); ok {
		e.HiredAt, _ = time.Parse(time.RFC3339, s)
	}
	return e
}

func validateEmployee(e Employee) error {
	if strings.TrimSpace(e.Name) == "" {
		return &validation.Error{Rule: validation.RuleRequired, Field: validation.FieldName, Message: "El nombre es obligatorio"}
	}
	if err := validation.Email(e.Email); err != nil {
		return err
	}
	if _, err := validation.ParseAge(strconv.Itoa(e.Age)); err != nil {
		return err
	}
	return nil
}

// EmployeeService is passthrough CRUD over the employees collection.
type EmployeeService struct {
	store  backend.DocumentStore
	logger logging.Logger
	newID  func() string
}

func NewEmployeeService(store backend.DocumentStore, l logging.Logger) *EmployeeService {
	return &EmployeeService{store: store, logger: l.With("module", "employees"), newID: uuid.NewString}
}

func (s *EmployeeService) List(ctx context.Context) ([]Employee, error) {
	items, err := s.store.List(ctx, common.CollectionEmployees)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	out := make([]Employee, 0, len(items))
	for _, it := range items {
		out = append(out, DecodeEmployee(it.Key, it.Fields))
	}
	return out, nil
}

// Create stores e under a new id and returns it with the id set.
func (s *EmployeeService) Create(ctx context.Context, e Employee) (Employee, error) {
	if err := validateEmployee(e); err != nil {
		return Employee{}, err
	}
	e.ID = s.newID()
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	if err := s.store.Set(ctx, common.CollectionEmployees, e.ID, e.Document(), false); err != nil {
		return Employee{}, fmt.Errorf("create employee: %w", err)
	}
	s.logger.Info(ctx, "employee created", "id", e.ID)
	return e, nil
}

// Update overwrites the fields of an existing employee.
func (s *EmployeeService) Update(ctx context.Context, e Employee) error {
	if err := validateEmployee(e); err != nil {
		return err
	}
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	if err := s.store.Update(ctx, common.CollectionEmployees, e.ID, e.Document()); err != nil {
		return fmt.Errorf("update employee %s: %w", e.ID, err)
	}
	return nil
}

func (s *EmployeeService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.store.Update(ctx, common.CollectionEmployees, id, backend.Document{"activo": active}); err != nil {
		return fmt.Errorf("set employee %s active=%t: %w", id, active, err)
	}
	s.logger.Info(ctx, "employee status changed", "id", id, "active", active)
	return nil
}

// Toggle flips the active flag as last seen in e and returns the new value.
func (s *EmployeeService) Toggle(ctx context.Context, e Employee) (bool, error) {
	if err := s.SetActive(ctx, e.ID, !e.Active); err != nil {
		return e.Active, err
	}
	return !e.Active, nil
}

func (s *EmployeeService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, common.CollectionEmployees, id); err != nil {
		return fmt.Errorf("delete employee %s: %w", id, err)
	}
	s.logger.Info(ctx, "employee deleted", "id", id)
	return nil
}
