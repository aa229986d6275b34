package rest

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/godilite/cs-eval-dashboard/internal/service"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("query"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// TicketQuery is the query string of GET /api/tickets. Page is not validated:
// an out-of-range page falls back to the first one.
type TicketQuery struct {
	Ticket   string `query:"ticket" validate:"max=200"`
	Agent    string `query:"agent" validate:"max=200"`
	Channel  string `query:"channel" validate:"max=200"`
	Tag      string `query:"tag" validate:"max=200"`
	Page     int    `query:"page"`
	PageSize int    `query:"pageSize" validate:"omitempty,oneof=5 10 20 50"`
}

func (q TicketQuery) Filters() service.Filters {
	return service.Filters{
		Ticket:  q.Ticket,
		Agent:   q.Agent,
		Channel: q.Channel,
		Tag:     q.Tag,
	}
}

// ViewState builds the grouped-view position the query asks for.
func (q TicketQuery) ViewState() (service.ViewState, error) {
	state := service.NewViewState().WithFilters(q.Filters())
	if q.PageSize != 0 {
		var err error
		if state, err = state.WithPageSize(q.PageSize); err != nil {
			return state, err
		}
	}
	if q.Page != 0 {
		state = state.WithPage(q.Page)
	}
	return state, nil
}

// validationError flattens validator output into one readable message.
type validationError struct {
	msgs []string
}

func (e *validationError) Error() string {
	return strings.Join(e.msgs, "; ")
}

func validateQuery(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &validationError{}
	for _, fe := range fieldErrs {
		out.msgs = append(out.msgs, fmt.Sprintf("%s: %s", fe.Field(), fieldMessage(fe)))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
