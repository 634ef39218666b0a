package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"khoroch/internal/core"
	"khoroch/internal/services"
)

type loginForm struct {
	Username string `form:"username" validate:"required,max=64"`
	Password string `form:"password" validate:"required,max=256"`
}

// expenseForm is the raw add/edit form. Values are kept as typed so a
// rejected form can be shown again unchanged.
type expenseForm struct {
	Category string `form:"category" validate:"required,max=100"`
	Amount   string `form:"amount" validate:"required,amount"`
	Date     string `form:"date" validate:"required,datetime=2006-01-02"`
	Scope    string `form:"scope" validate:"omitempty,oneof=personal joint"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := core.ParseAmount(fl.Field().String())
		return err == nil
	})
	return v
}

func (s *Server) parseLoginForm(w http.ResponseWriter, r *http.Request) (loginForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return loginForm{}, err
	}
	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	return form, s.validate.Struct(form)
}

// parseExpenseForm reads and validates the form. The returned form is always
// populated, even when err is non-nil.
func (s *Server) parseExpenseForm(w http.ResponseWriter, r *http.Request) (expenseForm, services.ExpenseInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return expenseForm{}, services.ExpenseInput{}, fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	form := expenseForm{
		Category: strings.TrimSpace(r.PostFormValue("category")),
		Amount:   strings.TrimSpace(r.PostFormValue("amount")),
		Date:     strings.TrimSpace(r.PostFormValue("date")),
		Scope:    strings.ToLower(strings.TrimSpace(r.PostFormValue("scope"))),
	}
	if err := s.validate.Struct(form); err != nil {
		return form, services.ExpenseInput{}, fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	amount, err := core.ParseAmount(form.Amount)
	if err != nil {
		return form, services.ExpenseInput{}, fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	return form, services.ExpenseInput{
		Category: form.Category,
		Amount:   amount,
		Date:     form.Date,
		Scope:    core.Scope(form.Scope).Normalize(),
	}, nil
}

// formFromExpense fills the edit form from a stored row.
func formFromExpense(e core.Expense) expenseForm {
	return expenseForm{
		Category: e.Category,
		Amount:   e.Amount.String(),
		Date:     e.Date,
		Scope:    string(e.Scope.Normalize()),
	}
}

// problems turns a validation failure into messages fit for the form.
func problems(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		switch {
		case errors.Is(err, core.ErrInvalidAmount):
			return []string{"Amount must be zero or more, with up to two decimals."}
		case errors.Is(err, core.ErrInvalidDate):
			return []string{"Date must look like 2024-05-31."}
		case errors.Is(err, core.ErrCategoryLength):
			return []string{"Category is limited to 100 characters."}
		case errors.Is(err, core.ErrEmptyCategory):
			return []string{"Category is required."}
		case errors.Is(err, core.ErrInvalidScope):
			return []string{"Scope must be joint or personal."}
		}
		return []string{"The form could not be read."}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldProblem(fe))
	}
	return out
}

func fieldProblem(fe validator.FieldError) string {
	switch fe.Field() {
	case "category":
		if fe.Tag() == "max" {
			return "Category is limited to 100 characters."
		}
		return "Category is required."
	case "amount":
		if fe.Tag() == "required" {
			return "Amount is required."
		}
		return "Amount must be zero or more, with up to two decimals."
	case "date":
		return "Date must look like 2024-05-31."
	case "scope":
		return "Scope must be joint or personal."
	}
	return fmt.Sprintf("%s is invalid (%s).", fe.Field(), fe.Tag())
}
