package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"kyri56xcaesar/taskhub/internal/apperr"
)

// mapErr turns driver errors into apperr kinds. what names the entity for not-found text.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return apperr.Storage(err, "db error")
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		if strings.Contains(pgErr.ConstraintName, "email") {
			return apperr.Validation("user with this email already exists")
		}
		return apperr.Validation("duplicate value violates a unique constraint")
	case "23503": // foreign_key_violation
		return apperr.Validation("referenced record not found")
	case "23514": // check_violation
		if pgErr.Detail != "" {
			return apperr.Validation("%s", pgErr.Detail)
		}
		return apperr.Validation("value violates a check constraint")
	case "23502": // not_null_violation
		return apperr.Validation("missing required field")
	case "22P02", "22007": // invalid_text_representation, invalid_datetime_format
		return apperr.Validation("invalid value format")
	case "22001":
		return apperr.Validation("value is too long")
	default:
		return apperr.Storage(err, "db error")
	}
}
