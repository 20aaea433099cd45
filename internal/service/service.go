// Package service holds the resource facades used by the HTTP layer. Every
// mutating operation is authorized, validated, executed through the cached
// resource layer and reported to the notifier.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"foundation_site/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput runs the struct tags of in and reports every failing field
// as a domain.FieldError.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, domain.Invalid(fe.Field(), "%s", validationMessage(fe)))
	}
	return errors.Join(errs...)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

type operation struct {
	resource string
	action   string
	done     string
	cap      domain.Capability
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Notification) {}

type directTransactions struct{}

func (directTransactions) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type base struct {
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func newBase(notifier Notifier, logger *slog.Logger, component string) base {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return base{
		notifier: notifier,
		logger:   logger.With("service", component),
		now:      time.Now,
	}
}

// run executes fn as the mutation op on behalf of actor. Operations without
// a capability are public.
func (b *base) run(ctx context.Context, actor *domain.Actor, op operation, fn func(ctx context.Context) error) error {
	var err error
	if op.cap != "" {
		err = domain.Authorize(actor, op.cap)
	}
	if err == nil {
		err = fn(ctx)
	}

	if err != nil {
		b.logger.Error("operation failed",
			"resource", op.resource,
			"action", op.action,
			"error", err,
		)
		b.notify(ctx, domain.NotifyError, op, "Error", err.Error())
		return err
	}

	b.logger.Info("operation succeeded", "resource", op.resource, "action", op.action)
	b.notify(ctx, domain.NotifySuccess, op, op.done, "")
	return nil
}

func (b *base) notify(ctx context.Context, kind domain.NotificationKind, op operation, title, description string) {
	b.notifier.Notify(ctx, domain.Notification{
		Kind:        kind,
		Title:       title,
		Description: description,
		Resource:    op.resource,
		Action:      op.action,
		Timestamp:   b.now().UTC(),
	})
}
